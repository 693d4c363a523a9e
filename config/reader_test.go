package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/camparams/logging"
	"go.viam.com/camparams/rimage/transform"
)

func TestFromReaderValidate(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := FromReader("somepath", strings.NewReader(""), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "EOF")

	_, err = FromReader("somepath", strings.NewReader(`{"camera": 1}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown field")

	_, err = FromReader("somepath", strings.NewReader(`{}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "one of calibration_file or preset is required")

	conf, err := FromReader("somepath", strings.NewReader(`{"preset": "reference"}`), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf, test.ShouldResemble, &Config{ConfigFilePath: "somepath", Preset: "reference"})
	_, ok := conf.CaptureSize()
	test.That(t, ok, test.ShouldBeFalse)
	p, err := conf.ResolvePreset()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldResemble, transform.ReferencePreset)
}

func TestFromReaderCollectsAllErrors(t *testing.T) {
	_, err := FromReader("", strings.NewReader(`{
		"preset": "missing",
		"watch": true,
		"capture_width_px": 640,
		"calibration_width_px": -1,
		"calibration_height_px": 480
	}`), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, multierr.Errors(err), test.ShouldHaveLength, 4)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown preset "missing"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"calibration_file" is required`)
	test.That(t, err.Error(), test.ShouldContainSubstring, "capture size must have positive width and height")
	test.That(t, err.Error(), test.ShouldContainSubstring, "calibration size must have positive width and height")

	_, err = FromReader("", strings.NewReader(`{"calibration_file": "/a.xml", "fallback_to_preset": true}`),
		logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"preset" is required`)
}

func TestFromReaderResolvesCalibrationFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	conf, err := FromReader(filepath.Join("configs", "camera.json"),
		strings.NewReader(`{"calibration_file": "calib.xml", "capture_width_px": 640, "capture_height_px": 480}`), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.CalibrationFile, test.ShouldEqual, filepath.Join("configs", "calib.xml"))
	size, ok := conf.CaptureSize()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, size, test.ShouldResemble, transform.Size{Width: 640, Height: 480})

	conf, err = FromReader(filepath.Join("configs", "camera.json"),
		strings.NewReader(`{"calibration_file": "/abs/calib.xml"}`), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.CalibrationFile, test.ShouldEqual, "/abs/calib.xml")
	_, err = conf.ResolvePreset()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadSubstitutesEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camera.json")
	test.That(t, os.WriteFile(path, []byte(`{
		"calibration_file": "${CAMPARAMS_TEST_CALIBRATION}",
		"preset": "reference",
		"fallback_to_preset": true,
		"calibration_width_px": 1280,
		"calibration_height_px": 720
	}`), 0o600), test.ShouldBeNil)
	t.Setenv("CAMPARAMS_TEST_CALIBRATION", "phone.yml")

	conf, err := Read(path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.CalibrationFile, test.ShouldEqual, filepath.Join(dir, "phone.yml"))
	test.That(t, conf.FallbackToPreset, test.ShouldBeTrue)
	test.That(t, conf.CalibrationSize(), test.ShouldResemble, transform.Size{Width: 1280, Height: 720})

	_, err = Read(filepath.Join(dir, "missing.json"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
