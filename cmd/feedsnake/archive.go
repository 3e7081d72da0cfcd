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
	"fmt"
	"path/filepath"

	"github.com/agentberlin/feedsnake"
	"github.com/agentberlin/feedsnake/internal/config"
	"github.com/agentberlin/feedsnake/internal/pgstore"
	"github.com/agentberlin/feedsnake/internal/session"
	"github.com/agentberlin/feedsnake/internal/store"
)

// archive is what the commands need from either backend.
type archive interface {
	feedsnake.ContentStore
	UpsertProfile(ctx context.Context, p feedsnake.SourceProfile) (feedsnake.SourceProfile, error)
	ListProfiles(ctx context.Context) ([]feedsnake.SourceProfile, error)
	ListItems(ctx context.Context, profileID uint, limit int) ([]feedsnake.ContentItem, error)
	SetDisabled(ctx context.Context, profileID uint, disabled bool) error
}

var (
	_ archive = (*store.Store)(nil)
	_ archive = (*pgstore.Store)(nil)
)

// openArchive opens the configured backend. The returned func closes it.
func openArchive(ctx context.Context, cfg config.StoreConfig) (archive, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := pgstore.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := store.NewStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	}
}

// cookieJar returns the jar of the configured session directory.
func cookieJar(cfg config.SessionConfig) (*session.Jar, error) {
	dir := cfg.Dir
	if dir == "" {
		base, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "sessions")
	}
	return session.NewJar(dir), nil
}

func loginConfig(a *app, interactive bool, progress feedsnake.ProgressFunc) session.LoginConfig {
	return session.LoginConfig{
		Site:        a.cfg.Session.Site,
		SiteURL:     a.cfg.Session.SiteURL,
		LoggedIn:    a.cfg.Selectors.LoggedIn,
		CookieWait:  a.cfg.Session.CookieWait,
		LoginWait:   a.cfg.Session.LoginWait,
		Interactive: interactive,
		Progress:    progress,
		Logger:      a.log,
	}
}
