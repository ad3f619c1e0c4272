// Package app wires the session, transport, cache, and fetchers into
// one client and hosts the live-tail runtime behind the TUI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radiolurker/crier/internal/bcfy"
	"github.com/radiolurker/crier/internal/browse"
	"github.com/radiolurker/crier/internal/cache"
	"github.com/radiolurker/crier/internal/calls"
	"github.com/radiolurker/crier/internal/config"
	"github.com/radiolurker/crier/internal/download"
	"github.com/radiolurker/crier/internal/prefs"
	"github.com/radiolurker/crier/internal/ratelimit"
	"github.com/radiolurker/crier/internal/state"
	"github.com/radiolurker/crier/internal/ui"
)

// Client is the composition root: one authenticated session and cache
// shared by every fetcher and poller created from it.
type Client struct {
	cfg       config.Config
	Session   *bcfy.Session
	API       *bcfy.Client
	Cache     *cache.Store
	Archive   *calls.ArchiveFetcher
	Directory *browse.Scraper
	Downloads *download.Downloader
}

// NewClient builds the client stack from configuration. The session
// stays unauthenticated until the first fetch needs it.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, &bcfy.AuthError{Reason: "no credentials configured"}
	}
	session, err := bcfy.NewSession(cfg.BaseURL, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}
	limiter := ratelimit.New()
	api, err := bcfy.NewClient(cfg.BaseURL, session, limiter)
	if err != nil {
		return nil, fmt.Errorf("init api client: %w", err)
	}
	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("open call cache: %w", err)
	}
	directory, err := browse.New(cfg.BaseURL, limiter, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init directory scraper: %w", err)
	}
	return &Client{
		cfg:       cfg,
		Session:   session,
		API:       api,
		Cache:     store,
		Archive:   calls.NewArchiveFetcher(api, session, store),
		Directory: directory,
		Downloads: download.New(nil),
	}, nil
}

// NewLivePoller creates a poller for one talkgroup's live feed, sharing
// the client's session.
func (c *Client) NewLivePoller(system, talkgroup int) *calls.LivePoller {
	return calls.NewLivePoller(c.API, c.Session, system, talkgroup)
}

// Close releases the cache and, when configured, logs the session out.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.cfg.AutoLogout {
		if err := c.Session.Logout(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Options configure the live-tail application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/crier/prefs.toml
	System     int    // zero falls back to prefs
	Talkgroup  int    // zero falls back to prefs
	PollEvery  int    // seconds; zero uses the configured interval
}

// Run boots the live-tail TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	userPrefs := prefs.Load(opts.PrefsPath)
	system, talkgroup := opts.System, opts.Talkgroup
	if system == 0 {
		system = userPrefs.System
	}
	if talkgroup == 0 {
		talkgroup = userPrefs.Talkgroup
	}
	if system == 0 || talkgroup == 0 {
		return fmt.Errorf("no talkgroup selected: pass system and talkgroup or set them in prefs")
	}

	client, err := NewClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	interval := time.Duration(cfg.PollSeconds) * time.Second
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	store := &state.Store{}
	StartPoller(ctx, store, client.NewLivePoller(system, talkgroup), interval)

	if err := ui.Run(ctx, ui.Options{
		Store:     store,
		System:    system,
		Talkgroup: talkgroup,
		ThemeName: userPrefs.Theme,
	}); err != nil {
		return err
	}

	// Remember where the user was watching.
	userPrefs.System = system
	userPrefs.Talkgroup = talkgroup
	_ = prefs.Save(opts.PrefsPath, userPrefs)
	return nil
}
