package cmd

import (
	"github.com/urfave/cli"
)

// Levels prints the configured quality table and the viewport each level derives.
func Levels(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	desired := cfg.Quality.DesiredSupersampling
	if ctx.IsSet("supersampling") {
		desired = ctx.Float64("supersampling")
	}
	return renderLevels(ctx.App.Writer, cfg.Table(), cfg.Display.RecommendedWidth, cfg.Display.RecommendedHeight, desired)
}
