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
	"strconv"
	"strings"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/seed"
	"github.com/spf13/cobra"
)

func newProfilesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage tracked profiles",
	}
	cmd.AddCommand(
		newProfilesAddCommand(a),
		newProfilesListCommand(a),
		newProfilesSeedCommand(a),
		newProfilesToggleCommand(a, "enable", false),
		newProfilesToggleCommand(a, "disable", true),
	)
	return cmd
}

func newProfilesAddCommand(a *app) *cobra.Command {
	var (
		name     string
		policy   string
		priority int
	)
	cmd := &cobra.Command{
		Use:   "add <feed-url>",
		Short: "Track a profile, or update the one with the same feed URL",
		Example: `  feedsnake profiles add https://www.xiaohongshu.com/user/profile/5f0c... --name brand --policy full --priority 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedURL := strings.TrimSpace(args[0])
			if !strings.HasPrefix(feedURL, "http://") && !strings.HasPrefix(feedURL, "https://") {
				feedURL = "https://" + feedURL
			}
			p, err := feedsnake.ParsePolicy(policy)
			if err != nil {
				return err
			}
			if name == "" {
				name = feedURL
			}

			arch, closeArchive, err := openArchive(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer closeArchive()

			saved, err := arch.UpsertProfile(cmd.Context(), feedsnake.SourceProfile{
				Name:     name,
				FeedURL:  feedURL,
				Policy:   p,
				Priority: priority,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %d: %s (%s, priority %d)\n", saved.ID, saved.Name, saved.Policy, saved.Priority)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name (default is the feed URL)")
	cmd.Flags().StringVarP(&policy, "policy", "p", "quick", "collection policy: full, quick or skip")
	cmd.Flags().IntVar(&priority, "priority", 0, "higher priorities are harvested first")
	return cmd
}

func newProfilesListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			arch, closeArchive, err := openArchive(ctx, a.cfg.Store)
			if err != nil {
				return err
			}
			defer closeArchive()

			profiles, err := arch.ListProfiles(ctx)
			if err != nil {
				return fmt.Errorf("failed to get profiles: %w", err)
			}
			due, err := arch.ListProfilesDueForHarvest(ctx)
			if err != nil {
				return fmt.Errorf("failed to get due profiles: %w", err)
			}
			isDue := make(map[uint]bool, len(due))
			for _, p := range due {
				isDue[p.ID] = true
			}

			rows := make([]profileRow, 0, len(profiles))
			for _, p := range profiles {
				n, err := arch.CountItems(ctx, p.ID)
				if err != nil {
					return fmt.Errorf("failed to count items of profile %d: %w", p.ID, err)
				}
				rows = append(rows, profileRow{SourceProfile: p, Items: n, Due: isDue[p.ID]})
			}
			renderProfiles(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newProfilesSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Import profiles from a YAML seed file",
		Long: `Imports profiles from a YAML file. Profiles are matched by feed URL, so
seeding the same file twice updates instead of duplicating.

  defaults:
    policy: quick
  profiles:
    - name: brand
      feed_url: https://www.xiaohongshu.com/user/profile/5f0c...
      policy: full
      priority: 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := seed.ParseFile(args[0])
			if err != nil {
				return err
			}
			arch, closeArchive, err := openArchive(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer closeArchive()

			stored, err := seed.Apply(cmd.Context(), arch, profiles)
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d profiles.\n", len(stored), len(profiles))
			return err
		},
	}
}

func newProfilesToggleCommand(a *app, use string, disabled bool) *cobra.Command {
	short := "Put a profile back into the harvest rotation"
	if disabled {
		short = "Take a profile out of the harvest rotation"
	}
	return &cobra.Command{
		Use:   use + " <profile-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid profile id %q", args[0])
			}
			arch, closeArchive, err := openArchive(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer closeArchive()

			if err := arch.SetDisabled(cmd.Context(), uint(id), disabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %d %sd.\n", id, use)
			return nil
		},
	}
}
