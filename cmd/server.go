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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/payrunhq/payrun/api"
	"github.com/payrunhq/payrun/config"
)

func initializeRouter(b *payrunInstance) *gin.Engine {
	return api.NewAPI(b.payrun).Router()
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the command that starts the API server together
// with the scheduler in its configured mode.
func serverCommands(b *payrunInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start payrun server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			router := initializeRouter(b)

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			scheduler := b.payrun.Scheduler()
			switch cfg.Scheduler.Mode {
			case "loop":
				go scheduler.RunLoop(ctx)
			default:
				if err := scheduler.StartTimers(ctx); err != nil {
					log.Fatal(err)
				}
				defer scheduler.Stop()
			}

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
