// Package cli contains the camparams command line tool.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"go.viam.com/camparams/logging"
)

const (
	configFlag            = "config"
	debugFlag             = "debug"
	presetFlag            = "preset"
	formatFlag            = "format"
	calibrationWidthFlag  = "calibration-width"
	calibrationHeightFlag = "calibration-height"
	widthFlag             = "width"
	heightFlag            = "height"
	xFlag                 = "x"
	yFlag                 = "y"
)

// sourceFlags select where camera parameters come from when no FILE argument is given.
var sourceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  presetFlag,
		Usage: "use the named preset instead of a calibration file",
	},
	&cli.StringFlag{
		Name:  formatFlag,
		Usage: "format of the calibration file (xml or yaml); guessed from the extension or content when empty",
	},
	&cli.IntFlag{
		Name:  calibrationWidthFlag,
		Usage: "calibration width for files that do not record image_width",
	},
	&cli.IntFlag{
		Name:  calibrationHeightFlag,
		Usage: "calibration height for files that do not record image_height",
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "camparams",
		Usage:           "inspect and rescale camera calibration parameters",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load the calibration provider configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			// stdout carries command output
			cfg := logging.NewLoggerConfig()
			cfg.OutputPaths = []string{"stderr"}
			if c.Bool(debugFlag) {
				cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
			}
			logging.ReplaceGlobal(logging.NewLoggerFromConfig("camparams", cfg))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "print the intrinsic matrix and distortion coefficients",
				ArgsUsage: "[FILE]",
				Flags:     sourceFlags,
				Action:    ShowAction,
			},
			{
				Name:      "resize",
				Usage:     "print the parameters rescaled to another frame size",
				ArgsUsage: "[FILE]",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: widthFlag, Usage: "target frame width in pixels", Required: true},
					&cli.IntFlag{Name: heightFlag, Usage: "target frame height in pixels", Required: true},
				}, sourceFlags...),
				Action: ResizeAction,
			},
			{
				Name:      "undistort",
				Usage:     "map a distorted pixel to its undistorted position",
				ArgsUsage: "[FILE]",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{Name: xFlag, Usage: "pixel column", Required: true},
					&cli.Float64Flag{Name: yFlag, Usage: "pixel row", Required: true},
				}, sourceFlags...),
				Action: UndistortAction,
			},
			{
				Name:   "presets",
				Usage:  "list the built-in calibration presets",
				Action: PresetsAction,
			},
		},
	}
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	_, _ = fmt.Fprintf(w, format+"\n", a...)
}
