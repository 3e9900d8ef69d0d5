// Package errs separates recoverable configuration failures from fatal
// invariant violations. Configuration errors carry a human-readable
// message and are reported to the caller; invariant violations go
// through log.Panic and never produce a ConfigError.
package errs

import (
	"errors"
	"fmt"
)

type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

func Configf(format string, args ...interface{}) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
