package winvault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// xorCipher is a reversible stand-in for the platform protection service so
// persistence logic can be exercised on any OS.  Call counts let tests
// verify which layout variant handled an operation.
type xorCipher struct {
	key         byte
	encrypts    int
	decrypts    int
	failDecrypt bool
}

func (c *xorCipher) ID() string    { return "xor" }
func (c *xorCipher) Label() string { return "XOR Test Cipher" }

func (c *xorCipher) Encrypt(plaintext []byte) ([]byte, error) {
	c.encrypts++
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ c.key
	}
	return out, nil
}

func (c *xorCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	c.decrypts++
	if c.failDecrypt {
		return nil, errors.New("decrypt refused")
	}
	out := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		out[i] = b ^ c.key
	}
	return out, nil
}

func testProfiles() []Profile {
	return []Profile{
		{
			Name:              "laptop",
			DeviceID:          "device-001",
			Server:            "https://enroll.example.com",
			Keyspace:          "ABCD",
			EnrollmentKey:     []byte("enrollment-key-material"),
			TransportKey:      []byte("transport-key-material"),
			CreationTimestamp: 1700000000,
		},
		{
			Name:              "workstation",
			DeviceID:          "device-002",
			Server:            "https://enroll.example.com",
			Keyspace:          "ABCD",
			EnrollmentKey:     []byte("another-enrollment-key"),
			TransportKey:      []byte("another-transport-key"),
			CreationTimestamp: 1700000100,
		},
	}
}

func newTestPersistor(t *testing.T) (*Persistor, *xorCipher, *xorCipher) {
	t.Helper()
	legacy := &xorCipher{key: 0x5A}
	versioned := &xorCipher{key: 0xA5}
	p, err := NewPersistorWithCiphers(legacy, versioned, nil)
	if err != nil {
		t.Fatalf("failed to create persistor: %v", err)
	}
	p.SetFilePath(filepath.Join(t.TempDir(), "DeviceProfiles.dat"))
	return p, legacy, versioned
}

func TestLoadAllProfilesFirstRun(t *testing.T) {
	p, _, _ := newTestPersistor(t)

	profiles, activeID, err := p.LoadAllProfiles()
	if err != nil {
		t.Fatalf("first run load failed: %v", err)
	}
	if profiles == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %d", len(profiles))
	}
	if activeID != "" {
		t.Errorf("expected empty active ID, got %q", activeID)
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	p, legacy, versioned := newTestPersistor(t)

	want := testProfiles()
	if err := p.SaveAllProfiles(want, "device-002"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if legacy.encrypts != 1 {
		t.Errorf("expected legacy cipher to encrypt, got %d calls", legacy.encrypts)
	}
	if versioned.encrypts != 0 {
		t.Errorf("versioned cipher should not be used, got %d calls", versioned.encrypts)
	}

	// Legacy layout carries no header.
	raw, err := os.ReadFile(p.FilePath())
	if err != nil {
		t.Fatalf("failed to read backing file: %v", err)
	}
	if header, _ := splitHeader(raw); header != nil {
		t.Error("legacy file must not carry a header")
	}

	got, activeID, err := p.LoadAllProfiles()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if activeID != "device-002" {
		t.Errorf("active ID = %q, want device-002", activeID)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(got), len(want))
	}
	if got[0].Name != "laptop" || !bytes.Equal(got[0].TransportKey, want[0].TransportKey) {
		t.Errorf("profile content mismatch: %+v", got[0])
	}
}

func TestVersionedRoundTrip(t *testing.T) {
	p, legacy, versioned := newTestPersistor(t)
	p.SetFormatVersionOverride(Version11)

	want := testProfiles()
	if err := p.SaveAllProfiles(want, "device-001"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if versioned.encrypts != 1 {
		t.Errorf("expected versioned cipher to encrypt, got %d calls", versioned.encrypts)
	}
	if legacy.encrypts != 0 {
		t.Errorf("legacy cipher should not be used, got %d calls", legacy.encrypts)
	}

	// The file must start with a parsable header naming version 1.1.
	raw, err := os.ReadFile(p.FilePath())
	if err != nil {
		t.Fatalf("failed to read backing file: %v", err)
	}
	header, _ := splitHeader(raw)
	if header == nil {
		t.Fatal("versioned file must carry a header")
	}
	version, err := parseHeaderVersion(header, FileTypeProfiles)
	if err != nil {
		t.Fatalf("header parse failed: %v", err)
	}
	if version != Version11 {
		t.Errorf("header version = %q, want %q", version, Version11)
	}

	got, activeID, err := p.LoadAllProfiles()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if versioned.decrypts != 1 {
		t.Errorf("expected versioned cipher to decrypt, got %d calls", versioned.decrypts)
	}
	if activeID != "device-001" {
		t.Errorf("active ID = %q, want device-001", activeID)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(got), len(want))
	}
}

func TestSaveKeepsOnDiskVersion(t *testing.T) {
	p, _, versioned := newTestPersistor(t)

	// Write once in the versioned layout, then clear the override.
	p.SetFormatVersionOverride(Version11)
	if err := p.SaveAllProfiles(testProfiles(), "device-001"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	p.SetFormatVersionOverride("")

	if err := p.SaveAllProfiles(testProfiles(), "device-001"); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if versioned.encrypts != 2 {
		t.Errorf("expected on-disk version to win, versioned encrypts = %d", versioned.encrypts)
	}
}

func TestSaveOverrideBeatsOnDiskVersion(t *testing.T) {
	p, legacy, _ := newTestPersistor(t)

	p.SetFormatVersionOverride(Version11)
	if err := p.SaveAllProfiles(testProfiles(), "device-001"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Force the bundle back to the legacy layout.
	p.SetFormatVersionOverride(Version10)
	if err := p.SaveAllProfiles(testProfiles(), "device-001"); err != nil {
		t.Fatalf("downgrade save failed: %v", err)
	}
	if legacy.encrypts != 1 {
		t.Errorf("expected legacy cipher for downgrade, got %d calls", legacy.encrypts)
	}

	raw, err := os.ReadFile(p.FilePath())
	if err != nil {
		t.Fatalf("failed to read backing file: %v", err)
	}
	if header, _ := splitHeader(raw); header != nil {
		t.Error("downgraded file must not carry a header")
	}
}

func TestLoadRejectsForeignFileType(t *testing.T) {
	p, _, _ := newTestPersistor(t)

	// A key vault header on the profile path is a wiring mistake, not a
	// legacy file.
	var buf bytes.Buffer
	buf.Write(createHeader(FileTypeKeyVault, Version10))
	buf.WriteString(HeaderDelimiter)
	buf.WriteString("ciphertext")
	if err := os.WriteFile(p.FilePath(), buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	_, _, err := p.LoadAllProfiles()
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestLoadUnknownHeaderVersionFallsBackToLegacy(t *testing.T) {
	p, legacy, _ := newTestPersistor(t)

	// Encrypt a bundle with the legacy cipher but prefix a header naming a
	// version this release does not know.  Older files written by newer
	// releases keep loading through the legacy path.
	ciphertext, err := encodeProfiles(testProfiles(), "device-001", legacy)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var buf bytes.Buffer
	buf.Write(createHeader(FileTypeProfiles, "9.9"))
	buf.WriteString(HeaderDelimiter)
	buf.Write(ciphertext)
	if err = os.WriteFile(p.FilePath(), buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	_, _, err = p.LoadAllProfiles()
	// The legacy variant decrypts the whole file including the header
	// bytes, so the content cannot parse; what matters here is that the
	// legacy cipher was selected rather than a version error returned.
	if errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("unknown version must not fail hard: %v", err)
	}
	if legacy.decrypts != 1 {
		t.Errorf("expected fallback to legacy cipher, decrypts = %d", legacy.decrypts)
	}
}

func TestVersionedLoadRejectsMissingHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "DeviceProfiles.dat")
	if err := os.WriteFile(path, []byte{0x01, 0x00, 0x00, 0x00}, 0600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	v11 := &persistorV11{path: path, cipher: &xorCipher{key: 0xA5}}
	_, _, err := v11.load()
	if !errors.Is(err, ErrMissingHeader) {
		t.Errorf("expected ErrMissingHeader, got %v", err)
	}
}

func TestLoadPropagatesDecryptFailure(t *testing.T) {
	p, legacy, _ := newTestPersistor(t)

	if err := p.SaveAllProfiles(testProfiles(), "device-001"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	legacy.failDecrypt = true

	_, _, err := p.LoadAllProfiles()
	if err == nil {
		t.Fatal("expected decrypt failure to propagate")
	}
}

func TestDefaultProfilePathPrefersExistingLocation(t *testing.T) {
	// Cannot redirect the user profile directory portably, so just verify
	// the computed path lands under a SouthWinds folder with the
	// conventional file name.
	path, err := DefaultProfilePath()
	if err != nil {
		t.Fatalf("default path failed: %v", err)
	}
	if filepath.Base(path) != profileFileName {
		t.Errorf("unexpected file name in %q", path)
	}
}

func TestFilePathOverride(t *testing.T) {
	p, _, _ := newTestPersistor(t)

	override := p.FilePath()
	p.SetFilePath("")
	if p.FilePath() == override {
		t.Error("clearing the override must restore the default path")
	}
	p.SetFilePath(override)
	if p.FilePath() != override {
		t.Errorf("FilePath = %q, want %q", p.FilePath(), override)
	}
}

func TestOptionsValidate(t *testing.T) {
	valid := []string{"", Version10, Version11}
	for _, version := range valid {
		if err := (Options{FormatVersionOverride: version}).Validate(); err != nil {
			t.Errorf("version %q should be valid: %v", version, err)
		}
	}
	if err := (Options{FormatVersionOverride: "2.0"}).Validate(); err == nil {
		t.Error("version 2.0 should be rejected")
	}
}
