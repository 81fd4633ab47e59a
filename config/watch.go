package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonwraymond/healthreport/observe"
	"github.com/jonwraymond/healthreport/secret"
)

// DefaultDebounce coalesces the burst of events editors and config map
// updates produce for one logical write.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc receives each successfully reloaded configuration.
type ReloadFunc func(cfg *Config)

// Watcher reloads a configuration file when it changes. Invalid files are
// logged and ignored, so the last good configuration stays in effect.
type Watcher struct {
	path     string
	resolver *secret.Resolver
	onReload ReloadFunc
	logger   observe.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchLogger sets the logger for reload events.
func WithWatchLogger(l observe.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithResolver sets the secret resolver used on reload.
func WithResolver(r *secret.Resolver) WatcherOption {
	return func(w *Watcher) {
		w.resolver = r
	}
}

// NewWatcher watches path. The parent directory is watched rather than the
// file, so atomic replaces (rename over, symlink swaps) are seen.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	w := &Watcher{
		path:     abs,
		onReload: onReload,
		logger:   observe.NoopLogger(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.resolver == nil {
		w.resolver = secret.NewResolver()
	}
	if w.logger == nil {
		w.logger = observe.NoopLogger()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.fs = fs
	return w, nil
}

// Run delivers reloads until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(ctx, "config watcher error", observe.F("error", err.Error()))

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	// Kubernetes config maps swap a "..data" symlink next to the file.
	return name == w.path || filepath.Base(name) == "..data"
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(ctx, w.path, w.resolver)
	if err != nil {
		w.logger.Error(ctx, "config reload rejected", observe.F("path", w.path), observe.F("error", err.Error()))
		return
	}
	w.logger.Info(ctx, "config reloaded", observe.F("path", w.path), observe.F("checks", len(cfg.Checks)))
	w.onReload(cfg)
}
