// Package cmd implements the oxy-vr command line actions.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/config"
	"github.com/Carmen-Shannon/oxy-vr/engine"
	"github.com/Carmen-Shannon/oxy-vr/engine/logger"
	"github.com/Carmen-Shannon/oxy-vr/engine/profiler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// loadConfig reads the file named by the global config flag, or the defaults.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return config.Config{}, err
	}
	if addr := ctx.String("metrics"); addr != "" {
		cfg.Metrics.Address = addr
	}
	return cfg, nil
}

// setupLogging builds the logger from the config, with the global flags taking precedence.
func setupLogging(ctx *cli.Context, cfg config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	lc := cfg.Logger()
	if level := ctx.GlobalString("log-level"); level != "" {
		lc.Level = level
	}
	if ctx.GlobalBool("dev") {
		lc.Development = true
	}
	return logger.New(lc)
}

// startMetrics registers the frame collectors and, when addr is set, serves them.
// The returned stop function shuts the server down.
func startMetrics(addr string, log *zap.Logger) (*profiler.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := profiler.NewMetrics(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := profiler.NewServer(addr, reg)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("address", ln.Addr().String()))

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	return m, stop, nil
}

// quitOnSignal quits the engine on SIGINT or SIGTERM. Call the returned function once Run returns.
func quitOnSignal(eng engine.Engine) func() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		eng.Quit()
	}()
	return stop
}
