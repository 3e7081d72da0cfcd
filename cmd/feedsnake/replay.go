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
	"os"
	"path/filepath"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/config"
	"github.com/agentberlin/feedsnake/internal/replay"
	"github.com/spf13/cobra"
)

func newReplayCommand(a *app) *cobra.Command {
	var (
		into  string
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "replay <manifest.yaml>",
		Short: "Harvest saved pages instead of the live site",
		Long: `Runs a harvest against pages saved to disk, listed in a manifest. Useful to
check that the selectors still match after the site changed its markup.

The harvest goes into a scratch archive that is removed afterwards, unless
--into names an SQLite file to keep. Every profile in that archive is
harvested, so point it at a dedicated file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := replay.Load(args[0])
			if err != nil {
				return err
			}

			path := into
			if path == "" {
				dir, err := os.MkdirTemp("", "feedsnake-replay-")
				if err != nil {
					return fmt.Errorf("failed to create scratch archive: %w", err)
				}
				defer os.RemoveAll(dir)
				path = filepath.Join(dir, "replay.db")
			}
			arch, closeArchive, err := openArchive(cmd.Context(), config.StoreConfig{Driver: config.DriverSQLite, Path: path})
			if err != nil {
				return err
			}
			defer closeArchive()

			batch, err := replay.Run(cmd.Context(), m, arch, a.log,
				feedsnake.WithSelectors(a.cfg.Selectors),
				feedsnake.WithEmitter(&CLIEmitter{out: cmd.ErrOrStderr(), quiet: quiet}),
			)
			renderBatch(cmd.OutOrStdout(), batch)
			if err != nil {
				return batchError(err)
			}
			if into != "" {
				items, err := arch.ListItems(cmd.Context(), 0, 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d items in %s\n", len(items), into)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "keep the harvest in this SQLite file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}
