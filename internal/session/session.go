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

// Package session keeps the login cookies of a site between runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentberlin/feedsnake"
	"github.com/kennygrant/sanitize"
	"go.uber.org/zap"
)

// ErrNoSession is returned by Load when no cookies were saved for a site.
var ErrNoSession = errors.New("no saved session")

const (
	DefaultCookieWait = 15 * time.Second
	DefaultLoginWait  = 120 * time.Second
)

// Jar stores one JSON cookie file per site in a directory.
type Jar struct {
	dir string
}

// NewJar creates a jar in dir.
func NewJar(dir string) *Jar {
	return &Jar{dir: dir}
}

// Path returns the cookie file of site. The name is sanitized so a site
// can never point outside the jar directory.
func (j *Jar) Path(site string) string {
	return filepath.Join(j.dir, sanitize.BaseName(site)+".json")
}

// Load reads the cookies saved for site.
func (j *Jar) Load(site string) ([]feedsnake.Cookie, error) {
	data, err := os.ReadFile(j.Path(site))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", site, ErrNoSession)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	var cookies []feedsnake.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", j.Path(site), err)
	}
	return cookies, nil
}

// Save replaces the cookies of site. The file is written next to the old
// one and renamed over it, so a crash never leaves half a jar.
func (j *Jar) Save(site string, cookies []feedsnake.Cookie) error {
	if err := os.MkdirAll(j.dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}

	path := j.Path(site)
	tmp, err := os.CreateTemp(j.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoginConfig configures Login.
type LoginConfig struct {
	// Site names the cookie file; SiteURL is the page that shows LoggedIn
	// for an authenticated session.
	Site     string
	SiteURL  string
	LoggedIn string
	// CookieWait bounds the check of the restored session.
	CookieWait time.Duration
	// LoginWait bounds a manual login in the browser window. It only
	// applies when Interactive is set.
	LoginWait   time.Duration
	Interactive bool
	Progress    feedsnake.ProgressFunc
	Logger      *zap.Logger
}

// Login restores the saved session of a site into browser and verifies it.
// When the session is gone and the login is interactive, it waits for the
// user to log in by hand. The cookies are saved again on success, which
// keeps their expiry fresh. ErrSessionExpired is returned when no logged
// in session could be established.
func Login(ctx context.Context, browser feedsnake.Browser, jar *Jar, cfg LoginConfig) error {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.LoggedIn == "" {
		cfg.LoggedIn = feedsnake.DefaultSelectors().LoggedIn
	}
	if cfg.CookieWait <= 0 {
		cfg.CookieWait = DefaultCookieWait
	}
	if cfg.LoginWait <= 0 {
		cfg.LoginWait = DefaultLoginWait
	}
	log = log.With(zap.String("site", cfg.Site))

	cookies, err := jar.Load(cfg.Site)
	switch {
	case errors.Is(err, ErrNoSession):
		log.Info("no saved session")
	case err != nil:
		log.Warn("ignoring unreadable cookie file", zap.Error(err))
	default:
		if err := browser.SetCookies(ctx, cookies); err != nil {
			return fmt.Errorf("failed to restore cookies: %w", err)
		}
		log.Info("restored cookies", zap.Int("count", len(cookies)))
	}

	page := browser.Page()
	if err := page.Navigate(ctx, cfg.SiteURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", cfg.SiteURL, err)
	}

	check := feedsnake.Wait{Phase: feedsnake.PhaseCookieCheck, Total: cfg.CookieWait, Progress: cfg.Progress}
	err = feedsnake.WaitUntil(ctx, check, feedsnake.ElementPresent(page, cfg.LoggedIn))
	if errors.Is(err, feedsnake.ErrWaitTimeout) {
		if !cfg.Interactive {
			return fmt.Errorf("saved session of %s is not logged in: %w", cfg.Site, feedsnake.ErrSessionExpired)
		}
		log.Info("please log in using the browser window", zap.Duration("timeout", cfg.LoginWait))
		manual := feedsnake.Wait{Phase: feedsnake.PhaseLogin, Total: cfg.LoginWait, Progress: cfg.Progress}
		err = feedsnake.WaitUntil(ctx, manual, feedsnake.ElementPresent(page, cfg.LoggedIn))
		if errors.Is(err, feedsnake.ErrWaitTimeout) {
			return fmt.Errorf("no login within %s: %w", cfg.LoginWait, feedsnake.ErrSessionExpired)
		}
	}
	if err != nil {
		return err
	}

	fresh, err := browser.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}
	if err := jar.Save(cfg.Site, fresh); err != nil {
		return err
	}
	log.Info("session saved", zap.Int("cookies", len(fresh)), zap.String("path", jar.Path(cfg.Site)))
	return nil
}
