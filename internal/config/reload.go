package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/opslatam/pistoleado/internal/log"
)

// Holder holds configuration with atomic reloading. A reload that fails to
// load or validate keeps the old configuration untouched.
type Holder struct {
	mu         sync.RWMutex
	current    Config
	configPath string
	logger     zerolog.Logger

	reloadMu  sync.RWMutex
	listeners []chan<- Config
}

// NewHolder creates a configuration holder with initial config.
func NewHolder(initial Config, configPath string) *Holder {
	return &Holder{
		current:    initial,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers a channel that receives every applied config.
func (h *Holder) Subscribe(ch chan<- Config) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

// Reload re-reads the file and atomically swaps the configuration.
func (h *Holder) Reload(_ context.Context) error {
	newCfg, err := Load(h.configPath)
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("keeping previous configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	h.current = newCfg
	h.mu.Unlock()

	h.reloadMu.RLock()
	for _, ch := range h.listeners {
		select {
		case ch <- newCfg:
		default:
		}
	}
	h.reloadMu.RUnlock()

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch re-reads the config file whenever it changes, until ctx ends.
// Editors replace files rather than writing in place, so create and rename
// events count as changes too. Events are debounced.
func (h *Holder) Watch(ctx context.Context) error {
	if h.configPath == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(h.configPath); err != nil {
		return fmt.Errorf("watch %s: %w", h.configPath, err)
	}

	var timer *time.Timer
	debounced := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case debounced <- struct{}{}:
				default:
				}
			})
		case <-debounced:
			if err := h.Reload(ctx); err != nil {
				h.logger.Warn().Err(err).Msg("hot reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
