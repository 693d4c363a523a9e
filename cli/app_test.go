package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/camparams/rimage/transform"
)

const testCalibration = `<?xml version="1.0"?>
<opencv_storage>
<image_width>640</image_width>
<image_height>480</image_height>
<camera_matrix type_id="opencv-matrix">
  <rows>3</rows><cols>3</cols><dt>d</dt>
  <data>500 0 320 0 400 240 0 0 1</data></camera_matrix>
<distortion_coefficients type_id="opencv-matrix">
  <rows>5</rows><cols>1</cols><dt>d</dt>
  <data>0.1 0.2 0 0 0.05</data></distortion_coefficients>
</opencv_storage>
`

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"camparams"}, args...))
	return out.String(), err
}

func writeCalibrationFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calib.xml")
	test.That(t, os.WriteFile(path, []byte(testCalibration), 0o600), test.ShouldBeNil)
	return path
}

func TestShow(t *testing.T) {
	out, err := runApp(t, "", "show", writeCalibrationFile(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "calibration size 640x480")
	test.That(t, out, test.ShouldContainSubstring, "500")
	test.That(t, out, test.ShouldContainSubstring, "0.05")
	test.That(t, out, test.ShouldContainSubstring, "k3")

	out, err = runApp(t, testCalibration, "show", "--format", "xml", "-")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "calibration size 640x480")

	out, err = runApp(t, "", "show", "--preset", transform.ReferencePreset.Name)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "1251.9588293098975")
	test.That(t, out, test.ShouldContainSubstring, "calibration size 1280x720")
}

func TestShowErrors(t *testing.T) {
	_, err := runApp(t, "", "show")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "need a calibration FILE")

	_, err = runApp(t, "", "show", filepath.Join(t.TempDir(), "missing.xml"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot parse camera calibration")

	_, err = runApp(t, "", "show", "--preset", "nope")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp(t, "", "show", "a.xml", "b.xml")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestResize(t *testing.T) {
	out, err := runApp(t, "", "resize", "--width", "1280", "--height", "480", writeCalibrationFile(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "calibration size 1280x480")
	test.That(t, out, test.ShouldContainSubstring, "1000")
	test.That(t, out, test.ShouldContainSubstring, "640")

	path := filepath.Join(t.TempDir(), "nosize.xml")
	test.That(t, os.WriteFile(path, []byte(`<opencv_storage>
<camera_matrix><data>500 0 320 0 400 240 0 0 1</data></camera_matrix>
<distortion_coefficients><data>0 0 0 0 0</data></distortion_coefficients>
</opencv_storage>`), 0o600), test.ShouldBeNil)
	_, err = runApp(t, "", "resize", "--width", "1280", "--height", "480", path)
	test.That(t, err, test.ShouldNotBeNil)

	out, err = runApp(t, "", "resize", "--width", "1280", "--height", "960",
		"--calibration-width", "640", "--calibration-height", "480", path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "800")
}

func TestUndistort(t *testing.T) {
	out, err := runApp(t, "", "undistort", "--x", "320", "--y", "240", writeCalibrationFile(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.TrimSpace(out), test.ShouldEqual, "320 240")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "calib.xml"), []byte(testCalibration), 0o600), test.ShouldBeNil)
	cfgPath := filepath.Join(dir, "camera.json")
	test.That(t, os.WriteFile(cfgPath, []byte(`{
		"calibration_file": "calib.xml",
		"capture_width_px": 320,
		"capture_height_px": 240,
		"watch": true
	}`), 0o600), test.ShouldBeNil)

	out, err := runApp(t, "", "--config", cfgPath, "show")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "calibration size 320x240")
	test.That(t, out, test.ShouldContainSubstring, "250")
}

func TestPresets(t *testing.T) {
	out, err := runApp(t, "", "presets")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, transform.ReferencePreset.Name)
	test.That(t, out, test.ShouldContainSubstring, "1280")
}
