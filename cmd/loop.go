/*
Copyright 2025 Payrun Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// loopCommands returns the diagnostic command that sweeps all enabled
// services continuously in the foreground, without the API server. Useful
// for draining a backlog or watching the engine work on a terminal.
func loopCommands(b *payrunInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "run the scheduler sweep loop in the foreground",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Println("Starting scheduler loop, press Ctrl+C to stop")
			b.payrun.Scheduler().RunLoop(ctx)
			log.Println("Scheduler loop stopped")
		},
	}

	return cmd
}
