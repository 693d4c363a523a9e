// Package config defines how a calibration provider is configured.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/camparams/rimage/transform"
)

// Config describes where camera parameters come from and what resolution they are used at.
type Config struct {
	// ConfigFilePath is the file the config was read from, if any.
	ConfigFilePath string `json:"-"`

	CalibrationFile  string `json:"calibration_file,omitempty"`
	Preset           string `json:"preset,omitempty"`
	FallbackToPreset bool   `json:"fallback_to_preset,omitempty"`

	// CalibrationWidth and CalibrationHeight give the calibration resolution for files that do
	// not record image_width and image_height.
	CalibrationWidth  int `json:"calibration_width_px,omitempty"`
	CalibrationHeight int `json:"calibration_height_px,omitempty"`

	// CaptureWidth and CaptureHeight are the live frame size the parameters are rescaled to.
	CaptureWidth  int `json:"capture_width_px,omitempty"`
	CaptureHeight int `json:"capture_height_px,omitempty"`

	Watch bool `json:"watch,omitempty"`
}

// Validate returns every problem with the config at once.
func (c *Config) Validate(path string) error {
	var errs error
	if c.CalibrationFile == "" && c.Preset == "" {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("one of calibration_file or preset is required")))
	}
	if c.Preset != "" {
		if _, ok := transform.LookupPreset(c.Preset); !ok {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("unknown preset %q", c.Preset)))
		}
	}
	if c.FallbackToPreset && c.Preset == "" {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "preset"))
	}
	if c.Watch && c.CalibrationFile == "" {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "calibration_file"))
	}
	if err := checkSize("calibration", c.CalibrationWidth, c.CalibrationHeight); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
	}
	if err := checkSize("capture", c.CaptureWidth, c.CaptureHeight); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
	}
	return errs
}

func checkSize(name string, width, height int) error {
	if width == 0 && height == 0 {
		return nil
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("%s size must have positive width and height, got (%d, %d)", name, width, height)
	}
	return nil
}

// CalibrationSize returns the configured calibration resolution, or zero when unset.
func (c *Config) CalibrationSize() transform.Size {
	return transform.Size{Width: c.CalibrationWidth, Height: c.CalibrationHeight}
}

// CaptureSize returns the configured capture resolution and whether one is set.
func (c *Config) CaptureSize() (transform.Size, bool) {
	size := transform.Size{Width: c.CaptureWidth, Height: c.CaptureHeight}
	return size, size.Width > 0 && size.Height > 0
}

// ResolvePreset returns the configured preset.
func (c *Config) ResolvePreset() (transform.Preset, error) {
	if c.Preset == "" {
		return transform.Preset{}, errors.New("no preset configured")
	}
	p, ok := transform.LookupPreset(c.Preset)
	if !ok {
		return transform.Preset{}, errors.Errorf("unknown preset %q", c.Preset)
	}
	return p, nil
}
