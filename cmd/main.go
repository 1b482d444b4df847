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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/payrunhq/payrun"
	"github.com/payrunhq/payrun/config"
	"github.com/payrunhq/payrun/database"
	"github.com/payrunhq/payrun/internal/notification"
)

// Payrun represents the CLI application, encapsulating the root Cobra command.
type Payrun struct {
	cmd *cobra.Command
}

// payrunInstance holds the engine instance and its configuration for the
// lifetime of one CLI invocation.
type payrunInstance struct {
	payrun *payrun.Payrun
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and initializes the engine before any command
// runs.
func preRun(app *payrunInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("payrun.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupPayrun(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.payrun = engine
		app.cnf = cnf

		return nil
	}
}

// setupPayrun connects the datasource, wires the completion webhook into it
// and builds the engine.
func setupPayrun(cfg *config.Configuration) (*payrun.Payrun, error) {
	db, err := database.GetDBConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}
	db.OnOrderCompleted = payrun.NotifyOrderCompleted

	engine, err := payrun.NewPayrun(db)
	if err != nil {
		return nil, fmt.Errorf("error creating payrun: %v", err)
	}
	return engine, nil
}

// NewCLI creates the command-line interface for the payrun engine.
func NewCLI() *Payrun {
	var configFile string
	b := &payrunInstance{}

	var rootCmd = &cobra.Command{
		Use:   "payrun",
		Short: "Order scheduling and reconciliation engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./payrun.json", "Configuration file for the engine")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(loopCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Payrun{cmd: rootCmd}
}

func (w Payrun) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
