package config

import (
	"time"

	"go.uber.org/zap"
)

// WatcherBuilderOption is a functional option for configuring a Watcher.
type WatcherBuilderOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *zap.Logger) WatcherBuilderOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets how long the watcher waits after the last change before reloading.
// Editors often write a file in several steps.
//
// Parameters:
//   - d: the quiet period, ignored when not positive
//
// Returns:
//   - WatcherBuilderOption: option function to apply
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogLevel lets reloads change the level of a running logger.
//
// Parameters:
//   - level: the level returned by logger.New
//
// Returns:
//   - WatcherBuilderOption: option function to apply
func WithLogLevel(level zap.AtomicLevel) WatcherBuilderOption {
	return func(w *Watcher) {
		w.level = &level
	}
}
