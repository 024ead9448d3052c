package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/Carmen-Shannon/oxy-vr/cmd"
	"github.com/urfave/cli"
)

// glfw and the wgpu surface must live on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	app := cli.NewApp()
	app.Name = "oxy-vr"
	app.Usage = "adaptive quality and frame pacing for stereo VR rendering"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML configuration file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override the configured log level (debug, info, warn, error)",
		},
		cli.BoolFlag{
			Name:  "dev",
			Usage: "human readable console logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "render to the desktop mirror window on the GPU",
			Description: `
Open a window, render both eyes into the pooled stereo targets and present them side by side.
The quality level adapts to the measured frame time.

Keys: = and - change the desired supersampling, [ and ] move the maximum level, 0 resets the
level band, R forces interleaved reprojection, D toggles double buffering, P suspends
rendering, X toggles the read-pixel probe and Escape quits.`,
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "watch, w",
					Usage: "apply changes to the config file's quality block while running",
				},
				cli.BoolFlag{
					Name:  "stats",
					Usage: "log frame statistics every second",
				},
				cli.IntFlag{
					Name:  "max-samples",
					Value: 4,
					Usage: "largest MSAA sample count the device may allocate",
				},
				cli.Float64Flag{
					Name:  "tick-rate",
					Value: 60,
					Usage: "application tick rate in Hz",
				},
				cli.StringFlag{
					Name:  "metrics",
					Usage: "serve Prometheus metrics on this address",
				},
			},
			Action: cmd.Run,
		},
		{
			Name:  "simulate",
			Usage: "run the quality loop headless against a simulated compositor",
			Description: `
Drive the controller with a modelled GPU cost instead of a headset and print how long the
session spent at each level together with the adaptation log.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "frames, n",
					Usage: "frames to simulate, 0 runs until interrupted",
				},
				cli.StringFlag{
					Name:  "profile, p",
					Usage: "load profile: steady, spike, ramp or heavy",
				},
				cli.Int64Flag{
					Name:  "seed",
					Usage: "noise seed",
				},
				cli.Float64Flag{
					Name:  "noise",
					Usage: "relative frame cost noise amplitude",
				},
				cli.BoolFlag{
					Name:  "realtime",
					Usage: "sleep out every simulated frame",
				},
				cli.BoolFlag{
					Name:  "stats",
					Usage: "log frame statistics every second",
				},
				cli.IntFlag{
					Name:  "log-rows",
					Value: 40,
					Usage: "most recent adaptations to print, -1 prints all",
				},
				cli.StringFlag{
					Name:  "metrics",
					Usage: "serve Prometheus metrics on this address",
				},
			},
			Action: cmd.Simulate,
		},
		{
			Name:  "levels",
			Usage: "print the quality table and the viewport of each level",
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "supersampling, s",
					Usage: "desired supersampling, defaults to the configured value",
				},
			},
			Action: cmd.Levels,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
