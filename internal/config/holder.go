// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xlog "github.com/kinetiq/formcoach/internal/log"
)

// Holder holds configuration with atomic reloading capability. It provides
// thread-safe snapshot access and supports hot reloading from file watch,
// periodic refresh, or manual trigger via the API.
type Holder struct {
	mu      sync.RWMutex
	current Config
	loader  *Loader
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []func(Config)
}

// NewHolder creates a configuration holder with an initial config.
func NewHolder(initial Config, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xlog.WithComponent("config"),
	}
}

// Get returns the current configuration snapshot (thread-safe read).
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers a callback invoked with every successfully applied config.
func (h *Holder) OnReload(fn func(Config)) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, fn)
}

// Reload reloads configuration from file and validates it. If validation
// fails the old configuration is kept and an error is returned, so updates
// are atomic: either the full config is valid and applied, or nothing changes.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
	return nil
}

func (h *Holder) notifyListeners(cfg Config) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()
	for _, fn := range h.reloadListeners {
		fn(cfg)
	}
}

// StartWatcher watches the config file for changes until ctx is cancelled.
// If the loader has no path this is a no-op (env-only configuration).
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.loader == nil || h.loader.Path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("config file watcher disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	if err := watcher.Add(h.loader.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().Str("event", "config.watcher_started").Str("path", h.loader.Path).Msg("config file watcher started")

	go func() {
		defer func() { _ = watcher.Close() }()
		// Editors often fire bursts of events for a single save; debounce.
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					pending = time.After(250 * time.Millisecond)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.Warn().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
			case <-pending:
				pending = nil
				if err := h.Reload(ctx); err != nil {
					h.logger.Warn().Err(err).Str("event", "config.watch_reload_failed").Msg("keeping previous configuration")
				}
			}
		}
	}()
	return nil
}

// RunPeriodicRefresh re-runs Reload on the configured interval. Disabled when
// the interval is zero. Never propagates errors; it logs and continues.
func (h *Holder) RunPeriodicRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info().Dur("interval", interval).Str("event", "config.periodic_refresh_started").Msg("periodic config refresh started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Reload(ctx); err != nil {
				h.logger.Warn().Err(err).Str("event", "config.periodic_refresh_failed").Msg("keeping previous configuration")
			}
		}
	}
}
