package cli

import (
	"fmt"
	"strconv"

	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/camparams/calibration"
	"go.viam.com/camparams/config"
	"go.viam.com/camparams/logging"
	"go.viam.com/camparams/rimage/transform"
)

// ShowAction prints the parameters.
func ShowAction(c *cli.Context) error {
	params, err := loadParameters(c)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", parametersTable(params))
	return nil
}

// ResizeAction prints the parameters after rescaling them to --width x --height.
func ResizeAction(c *cli.Context) error {
	params, err := loadParameters(c)
	if err != nil {
		return err
	}
	from := params.CalibrationSize()
	target := transform.Size{Width: c.Int(widthFlag), Height: c.Int(heightFlag)}
	if err := params.Resize(target); err != nil {
		return err
	}
	logging.Global().Debugw("resized camera parameters", "from", from, "to", target)
	printf(c.App.Writer, "%s", parametersTable(params))
	return nil
}

// UndistortAction prints where the pixel (--x, --y) lands once lens distortion is removed.
func UndistortAction(c *cli.Context) error {
	params, err := loadParameters(c)
	if err != nil {
		return err
	}
	model, err := params.PinholeModel()
	if err != nil {
		return err
	}
	pt, err := model.UndistortPoint(r2.Point{X: c.Float64(xFlag), Y: c.Float64(yFlag)})
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s %s", formatValue(pt.X), formatValue(pt.Y))
	return nil
}

// PresetsAction lists the registered presets.
func PresetsAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Width", "Height", "Fx", "Fy", "Cx", "Cy"})
	for _, name := range transform.PresetNames() {
		p, ok := transform.LookupPreset(name)
		if !ok {
			continue
		}
		t.AppendRow(table.Row{
			p.Name, p.Size.Width, p.Size.Height,
			formatValue(p.Matrix[0]), formatValue(p.Matrix[4]), formatValue(p.Matrix[2]), formatValue(p.Matrix[5]),
		})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// loadParameters picks the parameter source: a FILE argument ("-" for stdin), then --config,
// then --preset.
func loadParameters(c *cli.Context) (*transform.CameraParameters, error) {
	logger := logging.Global()
	params := transform.NewCameraParameters()
	params.SetCalibrationSize(transform.Size{
		Width:  c.Int(calibrationWidthFlag),
		Height: c.Int(calibrationHeightFlag),
	})

	switch {
	case c.Args().Len() > 1:
		return nil, errors.Errorf("expected at most one calibration file, got %d", c.Args().Len())
	case c.Args().First() == "-":
		calib, err := transform.DecodeCalibration(c.App.Reader, transform.CalibrationFormat(c.String(formatFlag)))
		if err != nil {
			return nil, err
		}
		params.LoadCalibration(calib)
	case c.Args().Present():
		path := c.Args().First()
		logger.Debugw("loading calibration file", "file", path)
		if err := params.LoadFromFile(path); err != nil {
			return nil, err
		}
	case c.String(configFlag) != "":
		cfg, err := config.Read(c.String(configFlag), logger)
		if err != nil {
			return nil, err
		}
		// a one-shot command has nothing to keep watching for
		cfg.Watch = false
		provider, _, err := calibration.NewProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := provider.Close(); err != nil {
				logger.Warnw("cannot close provider", "error", err)
			}
		}()
		return provider.Parameters(), nil
	case c.String(presetFlag) != "":
		p, ok := transform.LookupPreset(c.String(presetFlag))
		if !ok {
			return nil, errors.Errorf("unknown preset %q", c.String(presetFlag))
		}
		params.LoadDefaultMatrix(p)
		params.LoadDefaultDistortion(p)
	default:
		return nil, errors.New("need a calibration FILE, --config, or --preset")
	}
	return params, nil
}

func parametersTable(params *transform.CameraParameters) string {
	t := table.NewWriter()
	t.SetTitle("calibration size %dx%d", params.CalibrationSize().Width, params.CalibrationSize().Height)
	t.AppendHeader(table.Row{"Intrinsic matrix", "", ""})
	m := params.IntrinsicMatrix()
	for i := 0; i < 3; i++ {
		t.AppendRow(table.Row{formatValue(m.At(i, 0)), formatValue(m.At(i, 1)), formatValue(m.At(i, 2))})
	}
	t.AppendSeparator()
	coeffs := params.DistortionCoefficients()
	names := []string{"k1", "k2", "p1", "p2", "k3"}
	for i, v := range coeffs {
		name := fmt.Sprintf("c%d", i)
		if i < len(names) {
			name = names[i]
		}
		t.AppendRow(table.Row{name, formatValue(v), ""})
	}
	return t.Render()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
