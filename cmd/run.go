package cmd

import (
	"context"

	"github.com/Carmen-Shannon/oxy-vr/config"
	"github.com/Carmen-Shannon/oxy-vr/engine"
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/Carmen-Shannon/oxy-vr/engine/window"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// Run opens the desktop mirror window and drives the quality loop on the GPU, presenting both
// eyes side by side. The operator keys are bound in the window; with --watch the config file's
// quality block is applied live.
func Run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log, level, err := setupLogging(ctx, cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	win, err := window.NewWindow(
		window.WithTitle(cfg.Mirror.Title),
		window.WithSize(cfg.Mirror.Width, cfg.Mirror.Height),
	)
	if err != nil {
		return err
	}

	device, err := gpu.NewWGPUDevice(win.SurfaceDescriptor(),
		gpu.WithWGPUMaxSamples(ctx.Int("max-samples")),
		gpu.WithWGPULogger(log.Named("gpu")),
	)
	if err != nil {
		win.Close()
		return err
	}
	defer device.Release()
	device.ConfigureSurface(win.Width(), win.Height())
	win.SetResizeCallback(device.ConfigureSurface)

	mirror := compositor.NewMirror(device,
		compositor.WithMirrorRecommendedSize(cfg.Display.RecommendedWidth, cfg.Display.RecommendedHeight),
		compositor.WithMirrorRefreshRate(cfg.Display.RefreshRate),
		compositor.WithMirrorLogger(log.Named("compositor")),
	)

	ctrl, err := quality.NewController(device, mirror, append(cfg.ControllerOptions(), quality.WithLogger(log.Named("quality")))...)
	if err != nil {
		win.Close()
		return err
	}
	defer ctrl.Release()

	metrics, stopMetrics, err := startMetrics(cfg.Metrics.Address, log)
	if err != nil {
		win.Close()
		return err
	}
	defer stopMetrics()

	options := []engine.EngineBuilderOption{
		engine.WithController(ctrl),
		engine.WithCompositor(mirror),
		engine.WithWindow(win),
		engine.WithProfiling(ctx.Bool("stats")),
		engine.WithTickRate(ctx.Float64("tick-rate")),
		engine.WithLogger(log),
	}
	if metrics != nil {
		options = append(options, engine.WithMetrics(metrics))
	}

	if path := ctx.GlobalString("config"); path != "" && ctx.Bool("watch") {
		watcher, err := config.NewWatcher(path,
			config.WithWatcherLogger(log.Named("config")),
			config.WithLogLevel(level),
		)
		if err != nil {
			win.Close()
			return err
		}
		watchCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		watcher.Start(watchCtx)
		defer watcher.Close()
		options = append(options, engine.WithSettingsSource(watcher.Settings()))
	}

	eng, err := engine.NewEngine(options...)
	if err != nil {
		win.Close()
		return err
	}

	log.Info("mirror session started",
		zap.Int("recommended_width", cfg.Display.RecommendedWidth),
		zap.Int("recommended_height", cfg.Display.RecommendedHeight),
		zap.Float64("refresh_rate", cfg.Display.RefreshRate),
		zap.Int("level", ctrl.Level()))
	stop := quitOnSignal(eng)
	defer stop()
	return eng.Run()
}
