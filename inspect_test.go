package winvault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestInspectVersionedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DeviceProfiles.dat")
	var buf bytes.Buffer
	buf.Write(createHeader(FileTypeProfiles, Version11))
	buf.WriteString(HeaderDelimiter)
	buf.Write([]byte{0x01, 0x02, 0x03})
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	info, err := InspectFile(path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if info.Legacy {
		t.Error("versioned file reported as legacy")
	}
	if info.FileTypeID != FileTypeProfiles {
		t.Errorf("file type = %q", info.FileTypeID)
	}
	if info.Format != FormatDpapi {
		t.Errorf("format = %q", info.Format)
	}
	if info.FormatVersion != Version11 {
		t.Errorf("version = %q", info.FormatVersion)
	}
	if info.PayloadBytes != 3 {
		t.Errorf("payload = %d bytes, want 3", info.PayloadBytes)
	}
}

func TestInspectLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DeviceProfiles.dat")
	raw := []byte{0x01, 0x00, 0x00, 0x00, 0xD0}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	info, err := InspectFile(path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !info.Legacy {
		t.Error("headerless file must be reported as legacy")
	}
	if info.PayloadBytes != len(raw) {
		t.Errorf("payload = %d bytes, want %d", info.PayloadBytes, len(raw))
	}
}

func TestInspectMissingFile(t *testing.T) {
	_, err := InspectFile(filepath.Join(t.TempDir(), "absent.dat"))
	var fileErr *OpenFileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected OpenFileError, got %v", err)
	}
	if fileErr.Op != "inspect" {
		t.Errorf("op = %q", fileErr.Op)
	}
}
