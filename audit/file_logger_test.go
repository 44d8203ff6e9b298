package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestFileLogger(t *testing.T) *FileLogger {
	t.Helper()
	logger, err := NewFileLogger(&Config{
		Enabled: true,
		Type:    FileAuditType,
		Options: map[string]interface{}{
			"file_path": filepath.Join(t.TempDir(), "audit.log"),
		},
	})
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestFileLoggerRequiresPath(t *testing.T) {
	_, err := NewFileLogger(&Config{Enabled: true, Type: FileAuditType})
	if err == nil {
		t.Fatal("expected missing file_path to fail")
	}
}

func TestFileLoggerLogAndQuery(t *testing.T) {
	logger := newTestFileLogger(t)

	err := logger.Log("PROFILES_SAVE_COMPLETED", true, map[string]interface{}{
		"request_id":     "req-1",
		"path":           "DeviceProfiles.dat",
		"format_version": "1.1",
	})
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	err = logger.Log("PROFILES_LOAD_FAILED", false, map[string]interface{}{
		"request_id": "req-2",
		"path":       "DeviceProfiles.dat",
		"error":      "decrypt refused",
	})
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}

	result, err := logger.Query(QueryOptions{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(result.Events))
	}
}

func TestFileLoggerLiftsWellKnownMetadata(t *testing.T) {
	logger := newTestFileLogger(t)

	err := logger.Log("KEYVAULT_SAVE_COMPLETED", true, map[string]interface{}{
		"request_id":   "req-9",
		"path":         "KeyVaultDpapi.dat",
		"key_id":       "key-1",
		"record_count": 3,
	})
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}

	result, err := logger.Query(QueryOptions{RequestID: "req-9"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(result.Events))
	}
	event := result.Events[0]
	if event.Path != "KeyVaultDpapi.dat" {
		t.Errorf("path = %q", event.Path)
	}
	if event.KeyID != "key-1" {
		t.Errorf("key ID = %q", event.KeyID)
	}
	if _, ok := event.Metadata["path"]; ok {
		t.Error("lifted keys must leave the metadata map")
	}
	if _, ok := event.Metadata["record_count"]; !ok {
		t.Error("other metadata must survive")
	}
}

func TestFileLoggerQueryFilters(t *testing.T) {
	logger := newTestFileLogger(t)

	logger.Log("PROFILES_SAVE_COMPLETED", true, map[string]interface{}{"path": "a.dat"})
	logger.Log("PROFILES_SAVE_FAILED", false, map[string]interface{}{"path": "a.dat"})
	logger.Log("KEYVAULT_SAVE_COMPLETED", true, map[string]interface{}{"path": "b.dat"})

	failuresOnly := false
	result, err := logger.Query(QueryOptions{Success: &failuresOnly})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Action != "PROFILES_SAVE_FAILED" {
		t.Errorf("failure filter returned %+v", result.Events)
	}

	result, err = logger.Query(QueryOptions{Path: "b.dat"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Action != "KEYVAULT_SAVE_COMPLETED" {
		t.Errorf("path filter returned %+v", result.Events)
	}

	future := time.Now().Add(time.Hour)
	result, err = logger.Query(QueryOptions{Since: &future})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Events) != 0 {
		t.Errorf("future window returned %d events", len(result.Events))
	}
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	if err := logger.Log("anything", true, nil); err != nil {
		t.Errorf("no-op log failed: %v", err)
	}
	result, err := logger.Query(QueryOptions{})
	if err != nil {
		t.Errorf("no-op query failed: %v", err)
	}
	if len(result.Events) != 0 {
		t.Errorf("no-op returned events")
	}
}
