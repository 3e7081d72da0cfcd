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

// Package config loads the feedsnake configuration from a YAML file, the
// FEEDSNAKE_* environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentberlin/feedsnake"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override, e.g. FEEDSNAKE_PACING_MAX_SCROLLS.
const EnvPrefix = "FEEDSNAKE"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete feedsnake configuration.
type Config struct {
	Pacing    PacingConfig            `mapstructure:"pacing"`
	Browser   feedsnake.BrowserConfig `mapstructure:"browser"`
	Selectors feedsnake.Selectors     `mapstructure:"selectors"`
	Session   SessionConfig           `mapstructure:"session"`
	Store     StoreConfig             `mapstructure:"store"`
	Harvest   HarvestConfig           `mapstructure:"harvest"`
}

// PacingConfig mirrors feedsnake.PacingConfig with configuration keys.
type PacingConfig struct {
	ScrollWait        time.Duration `mapstructure:"scroll_wait"`
	DetailWait        time.Duration `mapstructure:"detail_wait"`
	DetailTimeout     time.Duration `mapstructure:"detail_timeout"`
	MaxScrolls        int           `mapstructure:"max_scrolls"`
	StallThreshold    int           `mapstructure:"stall_threshold"`
	ArchivedThreshold int           `mapstructure:"archived_threshold"`
}

// Engine converts the pacing into the engine's form.
func (p PacingConfig) Engine() feedsnake.PacingConfig {
	return feedsnake.PacingConfig{
		ScrollWait:        p.ScrollWait,
		DetailWait:        p.DetailWait,
		DetailTimeout:     p.DetailTimeout,
		MaxScrolls:        p.MaxScrolls,
		StallThreshold:    p.StallThreshold,
		ArchivedThreshold: p.ArchivedThreshold,
	}
}

// SessionConfig locates the cookie jar and the login page.
type SessionConfig struct {
	Dir        string        `mapstructure:"dir"`
	Site       string        `mapstructure:"site"`
	SiteURL    string        `mapstructure:"site_url"`
	CookieWait time.Duration `mapstructure:"cookie_wait"`
	LoginWait  time.Duration `mapstructure:"login_wait"`
}

// StoreConfig selects the archive. Path is used by sqlite, DSN by postgres.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// HarvestConfig configures batches.
type HarvestConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Schedule    string `mapstructure:"schedule"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	// LoginCheck bounds the per-profile check for a logged in session.
	LoginCheck time.Duration `mapstructure:"login_check"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	pacing := feedsnake.DefaultPacingConfig()
	return Config{
		Pacing: PacingConfig{
			ScrollWait:        pacing.ScrollWait,
			DetailWait:        pacing.DetailWait,
			DetailTimeout:     pacing.DetailTimeout,
			MaxScrolls:        pacing.MaxScrolls,
			StallThreshold:    pacing.StallThreshold,
			ArchivedThreshold: pacing.ArchivedThreshold,
		},
		Browser:   feedsnake.DefaultBrowserConfig(),
		Selectors: feedsnake.DefaultSelectors(),
		Session: SessionConfig{
			Site:       "www.xiaohongshu.com",
			SiteURL:    "https://www.xiaohongshu.com/explore",
			CookieWait: 15 * time.Second,
			LoginWait:  120 * time.Second,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
		},
		Harvest: HarvestConfig{
			Concurrency: 1,
			LoginCheck:  10 * time.Second,
		},
	}
}

// Validate checks values no default can repair.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Harvest.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("harvest.concurrency must be at least 1, got %d", c.Harvest.Concurrency))
	}
	if c.Pacing.MaxScrolls < 1 {
		errs = append(errs, fmt.Errorf("pacing.max_scrolls must be at least 1, got %d", c.Pacing.MaxScrolls))
	}
	if c.Pacing.StallThreshold < 1 {
		errs = append(errs, fmt.Errorf("pacing.stall_threshold must be at least 1, got %d", c.Pacing.StallThreshold))
	}
	if c.Session.SiteURL == "" {
		errs = append(errs, errors.New("session.site_url is required"))
	}
	return errors.Join(errs...)
}

// DefaultDir returns ~/.feedsnake, the home of the config file, the
// database and the cookie jar.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".feedsnake"), nil
}

// Loader owns the viper instance behind a Config.
type Loader struct {
	v    *viper.Viper
	log  *zap.Logger
	file string

	mu      sync.Mutex
	watched bool
}

// New prepares a loader. An empty cfgFile searches for feedsnake.yaml in
// the working directory and in ~/.feedsnake.
func New(cfgFile string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("feedsnake")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	return &Loader{v: v, log: log, file: cfgFile}
}

// setDefaults registers every key, which also lets AutomaticEnv reach keys
// that only exist in the environment.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("pacing.scroll_wait", d.Pacing.ScrollWait)
	v.SetDefault("pacing.detail_wait", d.Pacing.DetailWait)
	v.SetDefault("pacing.detail_timeout", d.Pacing.DetailTimeout)
	v.SetDefault("pacing.max_scrolls", d.Pacing.MaxScrolls)
	v.SetDefault("pacing.stall_threshold", d.Pacing.StallThreshold)
	v.SetDefault("pacing.archived_threshold", d.Pacing.ArchivedThreshold)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.user_data_dir", d.Browser.UserDataDir)
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.remote_url", d.Browser.RemoteURL)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)
	v.SetDefault("browser.window_width", d.Browser.WindowWidth)
	v.SetDefault("browser.window_height", d.Browser.WindowHeight)
	v.SetDefault("browser.stealth", d.Browser.Stealth)

	s := d.Selectors
	for key, value := range map[string]string{
		"feed_link":        s.FeedLink,
		"item_link_glob":   s.ItemLinkGlob,
		"feed_card":        s.FeedCard,
		"card_link":        s.CardLink,
		"card_cover":       s.CardCover,
		"card_title":       s.CardTitle,
		"logged_in":        s.LoggedIn,
		"detail_container": s.DetailContainer,
		"detail_time":      s.DetailTime,
		"detail_likes":     s.DetailLikes,
		"detail_video":     s.DetailVideo,
		"detail_poster":    s.DetailPoster,
		"detail_gallery":   s.DetailGallery,
		"detail_body":      s.DetailBody,
		"detail_title":     s.DetailTitle,
	} {
		v.SetDefault("selectors."+key, value)
	}

	v.SetDefault("session.dir", d.Session.Dir)
	v.SetDefault("session.site", d.Session.Site)
	v.SetDefault("session.site_url", d.Session.SiteURL)
	v.SetDefault("session.cookie_wait", d.Session.CookieWait)
	v.SetDefault("session.login_wait", d.Session.LoginWait)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.dsn", d.Store.DSN)

	v.SetDefault("harvest.concurrency", d.Harvest.Concurrency)
	v.SetDefault("harvest.schedule", d.Harvest.Schedule)
	v.SetDefault("harvest.metrics_addr", d.Harvest.MetricsAddr)
	v.SetDefault("harvest.login_check", d.Harvest.LoginCheck)
}

// Viper exposes the underlying instance, e.g. to bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads the config file, if any, and returns the merged configuration.
// A missing file is not an error when none was named explicitly.
func (l *Loader) Load() (Config, error) {
	if l.file != "" {
		if _, err := os.Stat(l.file); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		l.log.Debug("no config file, using defaults and environment")
	} else {
		l.log.Debug("loaded config", zap.String("path", l.v.ConfigFileUsed()))
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Watch re-reads the config file whenever it changes and applies the new
// pacing to settings, so a running batch picks it up on its next wait.
// Other sections only take effect on the next start. Invalid edits are
// logged and ignored. Watch is a no-op without a config file.
func (l *Loader) Watch(settings *feedsnake.Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watched || l.v.ConfigFileUsed() == "" {
		return
	}
	l.watched = true

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			l.log.Warn("ignoring config change", zap.String("path", e.Name), zap.Error(err))
			return
		}
		settings.Apply(cfg.Pacing.Engine())
		l.log.Info("pacing reloaded",
			zap.String("path", e.Name),
			zap.Duration("scroll_wait", cfg.Pacing.ScrollWait),
			zap.Int("max_scrolls", cfg.Pacing.MaxScrolls))
	})
	l.v.WatchConfig()
}
