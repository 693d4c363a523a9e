package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraModel is the model of a pinhole camera.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               Distorter `json:"distortion"`
}

// DistortionMap is a function that transforms the undistorted input points (u,v) to the distorted points (x,y)
// according to the model in PinholeCameraModel.Distortion.
func (params *PinholeCameraModel) DistortionMap() func(u, v float64) (float64, float64) {
	return params.pixelMap(params.Distortion)
}

// UndistortionMap is the inverse of DistortionMap. It is only available for Brown-Conrady models.
func (params *PinholeCameraModel) UndistortionMap() (func(u, v float64) (float64, float64), error) {
	inverse, err := params.inverseDistorter()
	if err != nil {
		return nil, err
	}
	return params.pixelMap(inverse), nil
}

// UndistortPoint maps a pixel seen through the lens to where an ideal pinhole camera would see it.
func (params *PinholeCameraModel) UndistortPoint(pt r2.Point) (r2.Point, error) {
	undistort, err := params.UndistortionMap()
	if err != nil {
		return r2.Point{}, err
	}
	x, y := undistort(pt.X, pt.Y)
	return r2.Point{X: x, Y: y}, nil
}

func (params *PinholeCameraModel) inverseDistorter() (Distorter, error) {
	if params.Distortion == nil {
		return nil, nil
	}
	switch params.Distortion.ModelType() { //nolint:exhaustive
	case BrownConradyDistortionType:
		return NewInverseBrownConrady(params.Distortion.Parameters())
	case InverseBrownConradyDistortionType:
		return NewBrownConrady(params.Distortion.Parameters())
	default:
		return nil, errors.Errorf("cannot invert %q distortion model", params.Distortion.ModelType())
	}
}

func (params *PinholeCameraModel) pixelMap(d Distorter) func(u, v float64) (float64, float64) {
	return func(u, v float64) (float64, float64) {
		if d == nil {
			return u, v
		}
		x := (u - params.Ppx) / params.Fx
		y := (v - params.Ppy) / params.Fy
		x, y = d.Transform(x, y)
		return x*params.Fx + params.Ppx, y*params.Fy + params.Ppy
	}
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera frame.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point to a pixel in an image plane.
// Points at zero depth project to (-1, -1) so that bounds checks filter them out.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z == 0 {
		return -1.0, -1.0
	}
	return math.Round((x/z)*params.Fx + params.Ppx), math.Round((y/z)*params.Fy + params.Ppy)
}

// GetCameraMatrix creates a new camera matrix and returns it.
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}
