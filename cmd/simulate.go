package cmd

import (
	"github.com/Carmen-Shannon/oxy-vr/config"
	"github.com/Carmen-Shannon/oxy-vr/engine"
	"github.com/Carmen-Shannon/oxy-vr/engine/compositor"
	"github.com/Carmen-Shannon/oxy-vr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// Simulate runs the quality loop headless against the simulated compositor and prints the level
// trajectory.
func Simulate(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	applySimulationFlags(ctx, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, _, err := setupLogging(ctx, cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	profile, err := compositor.ParseLoadProfile(cfg.Simulation.Profile)
	if err != nil {
		return err
	}

	device := gpu.NewHeadlessDevice(gpu.WithHeadlessLogger(log.Named("gpu")))
	comp := compositor.NewSimulated(
		compositor.WithSimulatedRecommendedSize(cfg.Display.RecommendedWidth, cfg.Display.RecommendedHeight),
		compositor.WithSimulatedRefreshRate(cfg.Display.RefreshRate),
		compositor.WithSimulatedLoadProfile(profile),
		compositor.WithSimulatedSeed(cfg.Simulation.Seed),
		compositor.WithSimulatedNoise(cfg.Simulation.Noise),
		compositor.WithSimulatedRealtime(cfg.Simulation.Realtime),
		compositor.WithSimulatedFrameLimit(cfg.Simulation.Frames),
		compositor.WithSimulatedLogger(log.Named("compositor")),
	)

	ctrl, err := quality.NewController(device, comp, append(cfg.ControllerOptions(), quality.WithLogger(log.Named("quality")))...)
	if err != nil {
		return err
	}
	defer ctrl.Release()

	metrics, stopMetrics, err := startMetrics(cfg.Metrics.Address, log)
	if err != nil {
		return err
	}
	defer stopMetrics()

	options := []engine.EngineBuilderOption{
		engine.WithController(ctrl),
		engine.WithCompositor(comp),
		engine.WithProfiling(ctx.Bool("stats")),
		engine.WithLogger(log),
	}
	if metrics != nil {
		options = append(options, engine.WithMetrics(metrics))
	}
	eng, err := engine.NewEngine(options...)
	if err != nil {
		return err
	}

	traj := newTrajectory(ctrl.Level())
	eng.SetRenderCallback(func(*engine.Frame) {
		traj.observe(ctrl.Stats())
	})

	log.Info("simulation started",
		zap.String("profile", string(profile)),
		zap.Int("frames", cfg.Simulation.Frames),
		zap.Uint64("seed", cfg.Simulation.Seed))
	stop := quitOnSignal(eng)
	err = eng.Run()
	stop()
	if err != nil {
		return err
	}

	return traj.render(ctx.App.Writer, ctrl.Table(), ctrl.Stats(), ctx.Int("log-rows"))
}

// applySimulationFlags overrides the simulation block with the flags the user set.
func applySimulationFlags(ctx *cli.Context, cfg *config.Config) {
	if ctx.IsSet("frames") {
		cfg.Simulation.Frames = ctx.Int("frames")
	}
	if ctx.IsSet("profile") {
		cfg.Simulation.Profile = ctx.String("profile")
	}
	if ctx.IsSet("seed") {
		cfg.Simulation.Seed = uint64(ctx.Int64("seed"))
	}
	if ctx.IsSet("noise") {
		cfg.Simulation.Noise = ctx.Float64("noise")
	}
	if ctx.IsSet("realtime") {
		cfg.Simulation.Realtime = ctx.Bool("realtime")
	}
}
