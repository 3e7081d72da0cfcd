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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/metrics"
	"github.com/agentberlin/feedsnake/internal/session"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHarvestCommand(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest every due profile",
		Long: `Harvests every enabled profile, highest priority first, then the ones
harvested longest ago. The saved session is restored into each browser.

Without --schedule one batch runs and the command exits. With it the command
stays up and starts a batch on every tick of the cron expression; a batch
still running when the next tick comes is not doubled.`,
		Example: `  # One batch
  feedsnake harvest

  # Every four hours, three browsers, with metrics
  feedsnake harvest --schedule "0 */4 * * *" --concurrency 3 --metrics-addr :9109`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.harvest(cmd, quiet)
		},
	}
	cmd.Flags().String("schedule", "", "cron expression; keep running and harvest on this schedule")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9109")
	cmd.Flags().Int("concurrency", 1, "profiles harvested at once, each in its own browser")
	cmd.Flags().Bool("headless", false, "run the browser without a window")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}

func (a *app) harvest(cmd *cobra.Command, quiet bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	arch, closeArchive, err := openArchive(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	defer closeArchive()

	jar, err := cookieJar(a.cfg.Session)
	if err != nil {
		return err
	}

	settings := feedsnake.NewSettings(a.cfg.Pacing.Engine())
	a.loader.Watch(settings)

	emitter := teeEmitter{&CLIEmitter{out: cmd.ErrOrStderr(), quiet: quiet}}
	if addr := a.cfg.Harvest.MetricsAddr; addr != "" {
		m := metrics.NewEmitter()
		emitter = append(emitter, m)
		srv := serveMetrics(addr, m.Handler(), a.log)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Every browser starts from the saved session. A session that is no
	// longer logged in fails the batch instead of harvesting empty feeds.
	launch := feedsnake.NewChromedpFactory(a.cfg.Browser)
	factory := func(ctx context.Context) (feedsnake.Browser, error) {
		b, err := launch(ctx)
		if err != nil {
			return nil, err
		}
		if err := session.Login(ctx, b, jar, loginConfig(a, false, nil)); err != nil {
			_ = b.Close()
			return nil, err
		}
		return b, nil
	}

	runner := feedsnake.NewRunner(feedsnake.RunnerConfig{
		Store:       arch,
		Factory:     factory,
		Concurrency: a.cfg.Harvest.Concurrency,
		Options: []feedsnake.HarvesterOption{
			feedsnake.WithSettings(settings),
			feedsnake.WithSelectors(a.cfg.Selectors),
			feedsnake.WithLogger(a.log),
			feedsnake.WithEmitter(emitter),
			feedsnake.WithLoginCheck(a.cfg.Harvest.LoginCheck),
		},
		Logger: a.log,
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			a.log.Info("stopping harvest", zap.String("signal", sig.String()))
			runner.Stop()
			cancel()
		case <-ctx.Done():
		}
	}()

	if a.cfg.Harvest.Schedule == "" {
		batch, err := runner.Run(ctx)
		renderBatch(cmd.OutOrStdout(), batch)
		return batchError(err)
	}
	return a.daemon(ctx, runner, a.cfg.Harvest.Schedule, cmd.OutOrStdout())
}

// batchError turns the outcome of a batch into the command's error. A
// batch stopped by a signal is a normal exit.
func batchError(err error) error {
	switch {
	case err == nil, errors.Is(err, feedsnake.ErrStopped):
		return nil
	case errors.Is(err, feedsnake.ErrSessionExpired):
		return fmt.Errorf("%w (run \"feedsnake login\" to log in again)", err)
	default:
		return err
	}
}

// daemon runs a batch on every tick of schedule until ctx is done.
func (a *app) daemon(ctx context.Context, runner *feedsnake.Runner, schedule string, out io.Writer) error {
	logger := cronLogger{log: a.log.Sugar()}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(schedule, func() {
		batch, err := runner.Run(ctx)
		if err := batchError(err); err != nil {
			a.log.Error("batch failed", zap.String("run_id", batch.RunID), zap.Error(err))
		}
		renderBatch(out, batch)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	c.Start()
	a.log.Info("harvest daemon started", zap.String("schedule", schedule), zap.Time("next", c.Entry(id).Next))
	<-ctx.Done()
	<-c.Stop().Done()
	a.log.Info("harvest daemon stopped")
	return nil
}

func serveMetrics(addr string, handler http.Handler, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

// cronLogger adapts zap to cron.Logger. Scheduler chatter goes to debug.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
