package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/logger"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a config file when it changes and publishes the operator settings it holds.
// Only the quality block and the log level are live; every other block needs a restart.
type Watcher struct {
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	path     string
	debounce time.Duration
	level    *zap.AtomicLevel

	settings  chan quality.Settings
	last      quality.Settings
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher creates a watcher for the config file at path. The directory is watched rather than
// the file so editors that replace the file on save are still seen.
//
// Parameters:
//   - path: the config file
//   - options: functional options for the watcher
//
// Returns:
//   - *Watcher: the watcher, not yet started
//   - error: an error if the file cannot be loaded or the directory cannot be watched
func NewWatcher(path string, options ...WatcherBuilderOption) (*Watcher, error) {
	path = filepath.Clean(path)
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		logger:   zap.NewNop(),
		watcher:  fw,
		path:     path,
		debounce: 200 * time.Millisecond,
		settings: make(chan quality.Settings, 1),
		last:     cfg.Settings(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

// Settings returns the stream of reloaded settings. It holds at most one pending value; a newer
// reload replaces one the reader has not taken yet.
func (w *Watcher) Settings() <-chan quality.Settings {
	return w.settings
}

// Start watches the file until ctx is done or Close is called.
//
// Parameters:
//   - ctx: the context bounding the watch
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("watching config", zap.String("path", w.path))

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer debounceTimer.Stop()
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if w.shouldReload(event) {
					w.logger.Debug("config change detected", zap.String("file", event.Name), zap.String("op", event.Op.String()))
					debounceTimer.Reset(w.debounce)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", zap.Error(err))

			case <-debounceTimer.C:
				w.reload()

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) shouldReload(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

// reload keeps the previous settings when the file does not parse or validate.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}

	if w.level != nil {
		if lvl, err := logger.ParseLevel(cfg.Log.Level); err == nil && lvl != w.level.Level() {
			w.level.SetLevel(lvl)
			w.logger.Info("log level changed", zap.Stringer("level", lvl))
		}
	}

	s := cfg.Settings()
	if s == w.last {
		return
	}
	w.last = s
	w.publish(s)
	w.logger.Info("settings reloaded",
		zap.Float64("desired_supersampling", s.DesiredSupersampling),
		zap.Int("min_level", s.MinimumQualityLevel),
		zap.Int("max_level", s.MaximumQualityLevel),
		zap.Bool("force_reprojection", s.ForceInterleavedReprojection),
		zap.Bool("suspended", s.SuspendedRendering),
		zap.Bool("double_buffering", s.DoubleBuffering),
	)
}

// publish is only called from the watch goroutine, so after draining a stale value the send
// cannot block.
func (w *Watcher) publish(s quality.Settings) {
	select {
	case w.settings <- s:
	default:
		select {
		case <-w.settings:
		default:
		}
		w.settings <- s
	}
}
