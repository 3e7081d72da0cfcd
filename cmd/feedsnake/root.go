// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/agentberlin/feedsnake/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app is the state shared by every command once the root has run.
type app struct {
	cfgFile string
	dbPath  string
	debug   bool

	log    *zap.Logger
	loader *config.Loader
	cfg    config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "feedsnake",
		Short:         "Incremental harvester for infinite-scroll feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./feedsnake.yaml or ~/.feedsnake/feedsnake.yaml)")
	flags.StringVar(&a.dbPath, "db", "", "SQLite archive path (default is ~/.feedsnake/feedsnake.db)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newLoginCommand(a),
		newHarvestCommand(a),
		newProfilesCommand(a),
		newItemsCommand(a),
		newReplayCommand(a),
		newVersionCommand(),
	)
	return root
}

// init loads .env, builds the logger and reads the configuration. Flags
// bound to config keys win over the file and the environment.
func (a *app) init(cmd *cobra.Command) error {
	_ = godotenv.Load()

	log, err := newLogger(a.debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.log = log
	zap.ReplaceGlobals(log)

	a.loader = config.New(a.cfgFile, log)
	v := a.loader.Viper()
	for key, flag := range map[string]string{
		"store.path":           "db",
		"harvest.schedule":     "schedule",
		"harvest.metrics_addr": "metrics-addr",
		"harvest.concurrency":  "concurrency",
		"browser.headless":     "headless",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind %s flag: %w", flag, err)
			}
		}
	}

	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
