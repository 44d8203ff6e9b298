package winvault

import (
	"errors"
	"fmt"
)

// Sentinel errors for the persistence layer.  Callers are expected to test
// with errors.Is; the wrapped message carries the detail (file path, parsed
// version, etc.).
var (
	// ErrMissingHeader indicates a file that must carry a type header does not.
	ErrMissingHeader = errors.New("profile file header missing")

	// ErrInvalidFormat indicates a header whose fileTypeId or format field
	// does not match the expected constants.
	ErrInvalidFormat = errors.New("profile file header invalid")

	// ErrUnsupportedVersion indicates a header naming a version this
	// persistor does not understand.
	ErrUnsupportedVersion = errors.New("profile file version not supported")

	// ErrResourceNotFound indicates the backing file for a key vault does
	// not exist.
	ErrResourceNotFound = errors.New("key vault storage file not found")

	// ErrLoadNotNeeded signals that the key vault backing file has not
	// changed since the last load or save on this instance.  Callers must
	// treat this as "use cached data", not as a fault.
	ErrLoadNotNeeded = errors.New("key vault load not needed")
)

// OpenFileError wraps an I/O failure reading or writing a backing file.
// It is never retried; the caller decides recovery policy.
type OpenFileError struct {
	Op   string // e.g. "read", "write", "load", "save"
	Path string
	Err  error
}

func (e *OpenFileError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpenFileError) Unwrap() error {
	return e.Err
}
