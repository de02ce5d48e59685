package elliptic

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

var ErrConfiguration = errors.New("elliptic: configuration error")

// ConfigError is a fatal configuration or precondition failure. It records
// where it was detected.
type ConfigError struct {
	Msg  string
	File string
	Line int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s (%s:%d)", ErrConfiguration, e.Msg, filepath.Base(e.File), e.Line)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func configErrorf(format string, args ...any) error {
	_, file, line, _ := runtime.Caller(1)
	return &ConfigError{Msg: fmt.Sprintf(format, args...), File: file, Line: line}
}
