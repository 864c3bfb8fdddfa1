package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError lists the human readable labels of required fields that
// were left blank. Nothing is written when it is returned.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "please fill required fields: " + strings.Join(e.Missing, ", ")
}

// ErrNotFound is returned when a record id matches no stored record.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("record %s not found", e.ID)
}

// ImportError reports an external table that could not be imported. The
// store is left untouched.
type ImportError struct {
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Err == nil {
		return "import failed: " + e.Reason
	}
	if e.Reason == "" {
		return "import failed: " + e.Err.Error()
	}
	return fmt.Sprintf("import failed: %s: %v", e.Reason, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ErrBackupUnavailable is returned when no backup destination is configured.
var ErrBackupUnavailable = errors.New("backup store not configured")

// IsNotFound reports whether err carries an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
