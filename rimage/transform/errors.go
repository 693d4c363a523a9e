package transform

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidState is returned when an operation needs camera parameters that have not been loaded.
var ErrInvalidState = errors.New("camera parameters are not loaded")

// NewInvalidStateError wraps ErrInvalidState with a description of what was attempted.
func NewInvalidStateError(msg string) error {
	return errors.Wrap(ErrInvalidState, msg)
}

// ConfigParseError is returned when a calibration file is missing, unreadable, or malformed.
// Section names the part of the file that failed, and is empty when the whole file could not be read.
type ConfigParseError struct {
	Path    string
	Section string
	Err     error
}

// NewConfigParseError builds a ConfigParseError for the given section.
func NewConfigParseError(section string, err error) *ConfigParseError {
	return &ConfigParseError{Section: section, Err: err}
}

func (e *ConfigParseError) Error() string {
	var where string
	switch {
	case e.Path != "" && e.Section != "":
		where = fmt.Sprintf("%q section %q", e.Path, e.Section)
	case e.Path != "":
		where = fmt.Sprintf("%q", e.Path)
	case e.Section != "":
		where = fmt.Sprintf("section %q", e.Section)
	default:
		where = "input"
	}
	return fmt.Sprintf("cannot parse camera calibration %s: %v", where, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigParseError) Unwrap() error {
	return e.Err
}
