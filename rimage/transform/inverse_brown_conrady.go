package transform

// InverseBrownConrady undoes a Brown-Conrady distortion. Given distorted points it solves for the
// undistorted ones with Newton-Raphson.
type InverseBrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// CheckValid checks if the fields for InverseBrownConrady have valid inputs.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// NewInverseBrownConrady takes in (k1, k2, k3, p1, p2) of the forward model. Missing values are 0.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	p, err := brownConradyParams(inp)
	if err != nil {
		return nil, err
	}
	return &InverseBrownConrady{p[0], p[1], p[2], p[3], p[4]}, nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns (k1, k2, k3, p1, p2) of the forward model.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return []float64{ibc.RadialK1, ibc.RadialK2, ibc.RadialK3, ibc.TangentialP1, ibc.TangentialP2}
}

// Transform converts a distorted point in normalized image coordinates to an undistorted one.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil {
		return xd, yd
	}
	const (
		maxIterations = 20
		tolerance     = 1e-10
	)
	k1, k2, k3 := ibc.RadialK1, ibc.RadialK2, ibc.RadialK3
	p1, p2 := ibc.TangentialP1, ibc.TangentialP2

	xu, yu := xd, yd
	for i := 0; i < maxIterations; i++ {
		xEst, yEst := brownConradyForward(k1, k2, k3, p1, p2, xu, yu)
		errX, errY := xEst-xd, yEst-yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		r2 := xu*xu + yu*yu
		radial := 1 + r2*(k1+r2*(k2+r2*k3))
		// d(radial)/d(r²), so d(radial)/dx = 2x * dRadial.
		dRadial := k1 + 2*k2*r2 + 3*k3*r2*r2

		j00 := radial + 2*xu*xu*dRadial + 2*p1*yu + 6*p2*xu
		j01 := 2*xu*yu*dRadial + 2*p1*xu + 2*p2*yu
		j10 := 2*xu*yu*dRadial + 2*p2*yu + 2*p1*xu
		j11 := radial + 2*yu*yu*dRadial + 2*p2*xu + 6*p1*yu

		det := j00*j11 - j01*j10
		if det == 0 {
			break
		}
		xu -= (j11*errX - j01*errY) / det
		yu -= (j00*errY - j10*errX) / det
	}
	return xu, yu
}
