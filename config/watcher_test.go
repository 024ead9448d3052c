package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func startWatcher(t *testing.T, path string, options ...WatcherBuilderOption) *Watcher {
	t.Helper()
	w, err := NewWatcher(path, append([]WatcherBuilderOption{WithDebounce(20 * time.Millisecond)}, options...)...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, w.Close())
	})
	w.Start(ctx)
	return w
}

func receive(t *testing.T, ch <-chan quality.Settings) quality.Settings {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no settings published")
		return quality.Settings{}
	}
}

func TestWatcherPublishesReloadedSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxyvr.yaml")
	writeConfig(t, path, "quality: {desired_supersampling: 1.0}\n")
	w := startWatcher(t, path)

	writeConfig(t, path, "quality: {desired_supersampling: 1.2, force_interleaved_reprojection: true}\n")

	s := receive(t, w.Settings())
	assert.Equal(t, 1.2, s.DesiredSupersampling)
	assert.True(t, s.ForceInterleavedReprojection)
}

func TestWatcherKeepsSettingsOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxyvr.yaml")
	writeConfig(t, path, "quality: {desired_supersampling: 1.0}\n")
	core, logs := observer.New(zapcore.WarnLevel)
	w := startWatcher(t, path, WithWatcherLogger(zap.New(core)))

	writeConfig(t, path, "quality: {desired_supersampling: -3}\n")
	require.Eventually(t, func() bool {
		return logs.FilterMessage("config reload rejected").Len() > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, w.Settings())

	writeConfig(t, path, "quality: {desired_supersampling: 0.8}\n")
	assert.Equal(t, 0.8, receive(t, w.Settings()).DesiredSupersampling)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oxyvr.yaml")
	writeConfig(t, path, "quality: {desired_supersampling: 1.0}\n")
	w := startWatcher(t, path)

	writeConfig(t, filepath.Join(dir, "other.yaml"), "quality: {desired_supersampling: 1.5}\n")
	assert.Never(t, func() bool { return len(w.Settings()) > 0 }, 200*time.Millisecond, 10*time.Millisecond)
}

func TestWatcherChangesLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxyvr.yaml")
	writeConfig(t, path, "log: {level: info}\n")
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	w := startWatcher(t, path, WithLogLevel(level))

	writeConfig(t, path, "log: {level: debug}\nquality: {suspended_rendering: true}\n")

	assert.True(t, receive(t, w.Settings()).SuspendedRendering)
	assert.Equal(t, zapcore.DebugLevel, level.Level())
}

func TestPublishReplacesPendingValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxyvr.yaml")
	writeConfig(t, path, "{}\n")
	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	first := quality.DefaultSettings()
	second := first
	second.MaximumQualityLevel = 3
	w.publish(first)
	w.publish(second)

	require.Len(t, w.Settings(), 1)
	assert.Equal(t, second, <-w.Settings())
}

func TestNewWatcherRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxyvr.yaml")
	writeConfig(t, path, "log: {level: loud}\n")
	_, err := NewWatcher(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
