package winvault

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"southwinds.dev/winvault/audit"
	"southwinds.dev/winvault/internal/misc"
)

// newRequestID generates a correlation ID for audit events.
func newRequestID() string {
	return uuid.New().String()
}

// logAudit records an audit event, tolerating a nil logger.
func logAudit(logger audit.Logger, requestID, action string, err error, metadata map[string]interface{}) {
	if logger == nil {
		return
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["request_id"] = requestID
	if err != nil {
		metadata["error"] = err.Error()
	}
	// Audit failures must never mask the operation outcome.
	_ = logger.Log(action, err == nil, metadata)
}

// writeSecureFile writes data to path atomically: the content lands in a
// temp file in the target directory which is then renamed over the
// destination, so a reader never observes a partial file.
func writeSecureFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, misc.DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Chmod(tmpPath, misc.FilePermissions); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func isEmpty(s string) bool {
	return len(s) == 0
}

// nowUnix exists so tests can pin record timestamps.
var nowUnix = func() int64 {
	return time.Now().UTC().Unix()
}
