package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/camparams/logging"
)

// Read reads a config from the given file. ${VAR} references are replaced from the environment.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// A relative calibration_file is resolved against the directory of originalPath.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	cfg := &Config{ConfigFilePath: originalPath}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal config")
	}

	if cfg.CalibrationFile != "" && !filepath.IsAbs(cfg.CalibrationFile) && originalPath != "" {
		cfg.CalibrationFile = filepath.Join(filepath.Dir(originalPath), cfg.CalibrationFile)
	}
	if err := cfg.Validate("camparams"); err != nil {
		return nil, err
	}
	logger.Debugw("read config",
		"path", originalPath,
		"calibration_file", cfg.CalibrationFile,
		"preset", cfg.Preset,
		"watch", cfg.Watch,
	)
	return cfg, nil
}
