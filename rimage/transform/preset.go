package transform

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Preset is a named calibration result that can stand in for a calibration file.
type Preset struct {
	Name string
	// Size is the resolution the preset was calibrated at.
	Size Size
	// Matrix is the intrinsic matrix in row-major order.
	Matrix [9]float64
	// Distortion is (k1, k2, p1, p2, k3).
	Distortion [5]float64
}

// ReferencePreset is the calibration of the reference handset camera at 1280x720.
var ReferencePreset = Preset{
	Name: "reference",
	Size: Size{Width: 1280, Height: 720},
	Matrix: [9]float64{
		1.2519588293098975e+03, 0., 6.6684948780852471e+02,
		0., 1.2519588293098975e+03, 3.6298123112613683e+02,
		0., 0., 1.,
	},
	Distortion: [5]float64{0., 0., 0., 0., 0.},
}

// CheckValid checks that the preset describes a usable pinhole calibration.
func (p Preset) CheckValid() error {
	if p.Name == "" {
		return errors.New("preset must have a name")
	}
	if p.Size.Width <= 0 || p.Size.Height <= 0 {
		return errors.Errorf("preset %q has invalid size (%d, %d)", p.Name, p.Size.Width, p.Size.Height)
	}
	if err := checkIntrinsicMatrix(p.Matrix); err != nil {
		return errors.Wrapf(err, "preset %q", p.Name)
	}
	return nil
}

// checkIntrinsicMatrix checks a row-major intrinsic matrix for finite values, positive focal
// lengths, and a (0, 0, 1) last row.
func checkIntrinsicMatrix(m [9]float64) error {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("matrix values must be finite, got %v", m)
		}
	}
	if m[0] <= 0 || m[4] <= 0 {
		return errors.Errorf("invalid focal lengths fx = %v, fy = %v", m[0], m[4])
	}
	if m[6] != 0 || m[7] != 0 || m[8] != 1 {
		return errors.Errorf("matrix last row must be (0, 0, 1), got %v", m[6:])
	}
	return nil
}

var (
	presetsMu sync.RWMutex
	presets   = map[string]Preset{ReferencePreset.Name: ReferencePreset}
)

// RegisterPreset makes a preset available to LookupPreset. Names must be unique.
func RegisterPreset(p Preset) error {
	if err := p.CheckValid(); err != nil {
		return err
	}
	presetsMu.Lock()
	defer presetsMu.Unlock()
	if _, ok := presets[p.Name]; ok {
		return errors.Errorf("preset %q already registered", p.Name)
	}
	presets[p.Name] = p
	return nil
}

// LookupPreset returns the registered preset with the given name.
func LookupPreset(name string) (Preset, bool) {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	p, ok := presets[name]
	return p, ok
}

// PresetNames returns the names of all registered presets in sorted order.
func PresetNames() []string {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
