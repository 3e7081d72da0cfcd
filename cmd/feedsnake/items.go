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

	"github.com/spf13/cobra"
)

func newItemsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect archived items",
	}

	var (
		profileID uint
		limit     int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the newest archived items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, closeArchive, err := openArchive(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer closeArchive()

			items, err := arch.ListItems(cmd.Context(), profileID, limit)
			if err != nil {
				return fmt.Errorf("failed to get items: %w", err)
			}
			renderItems(cmd.OutOrStdout(), items)
			return nil
		},
	}
	list.Flags().UintVarP(&profileID, "profile-id", "p", 0, "only items of this profile")
	list.Flags().IntVarP(&limit, "limit", "l", 50, "maximum number of items (0 = all)")

	cmd.AddCommand(list)
	return cmd
}
