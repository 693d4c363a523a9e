// Package transform holds camera calibration parameters, lens distortion models, and pinhole projection.
package transform

import (
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// Size is a frame resolution in pixels.
type Size struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

// CameraParameters holds the intrinsic matrix and lens distortion of a camera together with
// the resolution they were calibrated at. It is not safe for concurrent use.
//
// Intrinsic matrix:
// [[fx 0 cx],
//
//	[0 fy cy],
//	[0 0  1]]
type CameraParameters struct {
	intrinsic  *mat.Dense
	distortion []float64
	size       Size
}

// NewCameraParameters returns empty camera parameters. They are not valid until a preset or a
// calibration file is loaded.
func NewCameraParameters() *CameraParameters {
	return &CameraParameters{intrinsic: &mat.Dense{}}
}

// IsValid reports whether both the intrinsic matrix and the distortion coefficients are present.
func (cp *CameraParameters) IsValid() bool {
	if cp == nil || cp.intrinsic == nil {
		return false
	}
	r, c := cp.intrinsic.Dims()
	return r != 0 && c != 0 && len(cp.distortion) > 0
}

// IntrinsicMatrix returns a copy of the 3x3 intrinsic matrix, or nil if none is loaded.
func (cp *CameraParameters) IntrinsicMatrix() *mat.Dense {
	if cp.intrinsic == nil {
		return nil
	}
	if r, c := cp.intrinsic.Dims(); r == 0 || c == 0 {
		return nil
	}
	return mat.DenseCopyOf(cp.intrinsic)
}

// DistortionCoefficients returns a copy of (k1, k2, p1, p2, k3).
func (cp *CameraParameters) DistortionCoefficients() []float64 {
	out := make([]float64, len(cp.distortion))
	copy(out, cp.distortion)
	return out
}

// CalibrationSize returns the resolution the current matrix corresponds to.
func (cp *CameraParameters) CalibrationSize() Size {
	return cp.size
}

// SetCalibrationSize records the resolution the current matrix corresponds to without rescaling it.
func (cp *CameraParameters) SetCalibrationSize(size Size) {
	cp.size = size
}

// Clone returns a deep copy.
func (cp *CameraParameters) Clone() *CameraParameters {
	out := NewCameraParameters()
	if m := cp.IntrinsicMatrix(); m != nil {
		out.intrinsic = m
	}
	if len(cp.distortion) > 0 {
		out.distortion = cp.DistortionCoefficients()
	}
	out.size = cp.size
	return out
}

// LoadDefaultMatrix replaces the intrinsic matrix and calibration size with the preset's.
func (cp *CameraParameters) LoadDefaultMatrix(preset Preset) {
	data := preset.Matrix
	cp.intrinsic = mat.NewDense(3, 3, data[:])
	cp.size = preset.Size
}

// LoadDefaultDistortion replaces the distortion coefficients with the preset's.
func (cp *CameraParameters) LoadDefaultDistortion(preset Preset) {
	cp.distortion = append([]float64(nil), preset.Distortion[:]...)
}

// Resize rescales the focal lengths and principal point from the calibration size to target.
// After a successful resize the calibration size is target, so successive calls compose.
// Nothing is modified when an error is returned.
func (cp *CameraParameters) Resize(target Size) error {
	if !cp.IsValid() {
		return NewInvalidStateError("cannot resize camera parameters")
	}
	if cp.size.Width <= 0 || cp.size.Height <= 0 {
		return NewInvalidStateError("cannot resize camera parameters with unknown calibration size")
	}
	if target.Width <= 0 || target.Height <= 0 {
		return errors.Errorf("invalid target size (%d, %d)", target.Width, target.Height)
	}
	if target == cp.size {
		return nil
	}
	scaleX := float64(target.Width) / float64(cp.size.Width)
	scaleY := float64(target.Height) / float64(cp.size.Height)

	cp.intrinsic.Set(0, 0, cp.intrinsic.At(0, 0)*scaleX)
	cp.intrinsic.Set(0, 2, cp.intrinsic.At(0, 2)*scaleX)
	cp.intrinsic.Set(1, 1, cp.intrinsic.At(1, 1)*scaleY)
	cp.intrinsic.Set(1, 2, cp.intrinsic.At(1, 2)*scaleY)
	cp.size = target
	return nil
}

// LoadFromFile reads an OpenCV calibration file in XML or YAML form. The file must contain a
// camera_matrix with 9 values and distortion_coefficients with 5 values. If the file records
// image_width and image_height they replace the calibration size.
// On error a *ConfigParseError is returned and the parameters are left as they were.
func (cp *CameraParameters) LoadFromFile(path string) error {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return &ConfigParseError{Path: path, Err: errors.Wrap(err, "error opening calibration file")}
	}
	defer utils.UncheckedErrorFunc(f.Close)

	calib, err := DecodeCalibration(f, FormatFromPath(path))
	if err != nil {
		var parseErr *ConfigParseError
		if errors.As(err, &parseErr) {
			parseErr.Path = path
			return parseErr
		}
		return &ConfigParseError{Path: path, Err: err}
	}
	cp.apply(calib)
	return nil
}

// LoadCalibration replaces the parameters with an already decoded calibration.
func (cp *CameraParameters) LoadCalibration(calib *Calibration) {
	cp.apply(calib)
}

func (cp *CameraParameters) apply(calib *Calibration) {
	data := calib.Matrix
	cp.intrinsic = mat.NewDense(3, 3, data[:])
	cp.distortion = append([]float64(nil), calib.Distortion[:]...)
	if calib.Size.Width > 0 && calib.Size.Height > 0 {
		cp.size = calib.Size
	}
}

// PinholeModel converts the parameters into a pinhole model for projection and undistortion.
func (cp *CameraParameters) PinholeModel() (*PinholeCameraModel, error) {
	if !cp.IsValid() {
		return nil, NewInvalidStateError("cannot build pinhole model")
	}
	intrinsics := &PinholeCameraIntrinsics{
		Width:  cp.size.Width,
		Height: cp.size.Height,
		Fx:     cp.intrinsic.At(0, 0),
		Fy:     cp.intrinsic.At(1, 1),
		Ppx:    cp.intrinsic.At(0, 2),
		Ppy:    cp.intrinsic.At(1, 2),
	}
	distortion, err := NewBrownConradyFromOpenCV(cp.distortion)
	if err != nil {
		return nil, err
	}
	return &PinholeCameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: distortion}, nil
}
