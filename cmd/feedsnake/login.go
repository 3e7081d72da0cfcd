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
	"os/signal"
	"syscall"
	"time"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/session"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in by hand in a browser window and save the session",
		Long: `Opens the site in a visible browser window. A saved session is restored
first; when it is no longer logged in, log in by hand in the window and the
cookies are saved for later harvests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jar, err := cookieJar(a.cfg.Session)
			if err != nil {
				return err
			}

			browserCfg := a.cfg.Browser
			browserCfg.Headless = false
			browser, err := feedsnake.NewChromedpBrowser(ctx, browserCfg)
			if err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer browser.Close()

			out := cmd.ErrOrStderr()
			progress := func(phase feedsnake.Phase, elapsed, total time.Duration) {
				if phase == feedsnake.PhaseLogin {
					fmt.Fprintf(out, "\rWaiting for login in the browser window... %s / %s", elapsed.Round(time.Second), total)
				}
			}
			if err := session.Login(ctx, browser, jar, loginConfig(a, true, progress)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSession saved to %s\n", jar.Path(a.cfg.Session.Site))
			return nil
		},
	}
}
