// Package calibration shares one set of camera parameters between the consumers of a
// marker-detection pipeline. It decides where the parameters come from, keeps them scaled to the
// live capture resolution, and optionally reloads them when the calibration file changes.
package calibration

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camparams/config"
	"go.viam.com/camparams/logging"
	"go.viam.com/camparams/rimage/transform"
	"go.viam.com/camparams/utils"
)

// Source says where the current parameters were loaded from.
type Source string

const (
	// SourceFile means the calibration file was loaded.
	SourceFile = Source("file")
	// SourcePreset means the configured preset was loaded.
	SourcePreset = Source("preset")
)

// LoadResult describes a completed load.
type LoadResult struct {
	Source Source
	// FileErr is the calibration file error that caused a fallback to the preset.
	FileErr error
}

// Provider owns a CameraParameters and guards it with a read-write lock.
type Provider struct {
	cfg    config.Config
	logger logging.Logger

	mu          sync.RWMutex
	params      *transform.CameraParameters
	source      Source
	captureSize transform.Size

	watchMu sync.Mutex
	workers *utils.StoppableWorkers
	// reloaded is signalled after every reload attempt made by the watcher.
	reloaded func(LoadResult, error)
}

// NewProvider validates cfg and performs the first load. If cfg.Watch is set the calibration
// file is watched until Close.
func NewProvider(cfg *config.Config, logger logging.Logger) (*Provider, LoadResult, error) {
	if err := cfg.Validate("camparams"); err != nil {
		return nil, LoadResult{}, err
	}
	p := &Provider{cfg: *cfg, logger: logger}
	if size, ok := cfg.CaptureSize(); ok {
		p.captureSize = size
	}
	result, err := p.Reload()
	if err != nil {
		return nil, result, err
	}
	if cfg.Watch {
		if err := p.Watch(); err != nil {
			return nil, result, err
		}
	}
	return p, result, nil
}

// Reload loads fresh parameters and swaps them in. On error the previous parameters stay in place.
func (p *Provider) Reload() (LoadResult, error) {
	p.mu.RLock()
	target := p.captureSize
	p.mu.RUnlock()

	params, result, err := p.load(target)
	if err != nil {
		return result, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// a Resize may have happened while loading
	if p.captureSize != target && p.captureSize.Width > 0 {
		if err := params.Resize(p.captureSize); err != nil {
			return result, err
		}
	}
	p.params = params
	p.source = result.Source
	p.logger.Infow("camera parameters loaded",
		"source", result.Source,
		"calibration_size", params.CalibrationSize(),
	)
	return result, nil
}

func (p *Provider) load(target transform.Size) (*transform.CameraParameters, LoadResult, error) {
	params := transform.NewCameraParameters()
	var result LoadResult

	if p.cfg.CalibrationFile != "" {
		params.SetCalibrationSize(p.cfg.CalibrationSize())
		err := params.LoadFromFile(p.cfg.CalibrationFile)
		switch {
		case err == nil:
			result.Source = SourceFile
		case p.cfg.FallbackToPreset:
			p.logger.Warnw("cannot load calibration file, falling back to preset",
				"file", p.cfg.CalibrationFile,
				"preset", p.cfg.Preset,
				"error", err,
			)
			result.FileErr = err
		default:
			return nil, result, err
		}
	}

	if result.Source == "" {
		preset, err := p.cfg.ResolvePreset()
		if err != nil {
			return nil, result, err
		}
		params = transform.NewCameraParameters()
		params.LoadDefaultMatrix(preset)
		params.LoadDefaultDistortion(preset)
		result.Source = SourcePreset
	}

	if target.Width > 0 {
		if err := params.Resize(target); err != nil {
			return nil, result, errors.Wrapf(err, "cannot scale %s parameters to capture size", result.Source)
		}
	}
	return params, result, nil
}

// Resize rescales the shared parameters to a new capture size. Later reloads keep this size.
func (p *Provider) Resize(size transform.Size) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.params == nil {
		return transform.NewInvalidStateError("provider has no camera parameters")
	}
	if err := p.params.Resize(size); err != nil {
		return err
	}
	p.captureSize = size
	return nil
}

// Parameters returns a copy of the current parameters.
func (p *Provider) Parameters() *transform.CameraParameters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.params == nil {
		return transform.NewCameraParameters()
	}
	return p.params.Clone()
}

// IntrinsicMatrix returns a copy of the current intrinsic matrix.
func (p *Provider) IntrinsicMatrix() *mat.Dense {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.params == nil {
		return nil
	}
	return p.params.IntrinsicMatrix()
}

// DistortionCoefficients returns a copy of the current distortion coefficients.
func (p *Provider) DistortionCoefficients() []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.params == nil {
		return nil
	}
	return p.params.DistortionCoefficients()
}

// Source returns where the current parameters came from.
func (p *Provider) Source() Source {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source
}

// PinholeModel returns a pinhole model built from the current parameters.
func (p *Provider) PinholeModel() (*transform.PinholeCameraModel, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.params == nil {
		return nil, transform.NewInvalidStateError("provider has no camera parameters")
	}
	return p.params.PinholeModel()
}

// Watch reloads the parameters whenever the calibration file is written or replaced.
// Failed reloads are logged and leave the current parameters in place.
func (p *Provider) Watch() error {
	if p.cfg.CalibrationFile == "" {
		return errors.New("no calibration file to watch")
	}
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.workers != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot create file watcher")
	}
	// editors often replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(p.cfg.CalibrationFile)); err != nil {
		goutils.UncheckedError(watcher.Close())
		return errors.Wrapf(err, "cannot watch %q", p.cfg.CalibrationFile)
	}
	p.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		defer goutils.UncheckedErrorFunc(watcher.Close)
		p.watch(ctx, watcher)
	})
	return nil
}

func (p *Provider) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	logger := p.logger.Sublogger("watcher")
	target := filepath.Clean(p.cfg.CalibrationFile)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			logger.Debugw("calibration file changed", "file", event.Name, "op", event.Op.String())
			result, err := p.Reload()
			if err != nil {
				logger.Errorw("cannot reload camera parameters, keeping previous ones", "error", err)
			}
			if p.reloaded != nil {
				p.reloaded(result, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("file watcher error", "error", err)
		}
	}
}

// Close stops watching the calibration file.
func (p *Provider) Close() error {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.workers != nil {
		p.workers.Stop()
		p.workers = nil
	}
	return nil
}
