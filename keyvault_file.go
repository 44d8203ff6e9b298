package winvault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
)

// vaultDocument is the cleartext JSON layout of a vault store file, written
// behind the versioned file header and the platform cipher.
type vaultDocument struct {
	KeyRecords map[string]*KeyRecord `json:"keyRecords"`
}

// wipeKeyRecord scrubs the key material of a record being discarded.
func wipeKeyRecord(record *KeyRecord) {
	if record == nil {
		return
	}
	memguard.WipeBytes(record.Key)
	record.Key = nil
}

// loadVaultFile reads and decrypts the vault store at path, returning the
// record set keyed by record identifier.  Vault files always carry a header;
// a headerless file is rejected rather than treated as a legacy layout.
func loadVaultFile(path string, cipher Cipher) (map[string]*KeyRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &OpenFileError{Op: "load", Path: path, Err: err}
	}
	header, body := splitHeader(raw)
	if header == nil {
		return nil, fmt.Errorf("vault store %s: %w", path, ErrMissingHeader)
	}
	version, err := parseHeaderVersion(header, FileTypeKeyVault)
	if err != nil {
		return nil, fmt.Errorf("vault store %s: %w", path, err)
	}
	if version != Version10 {
		return nil, fmt.Errorf("vault store %s: version %q: %w", path, version, ErrUnsupportedVersion)
	}
	plaintext, err := cipher.Decrypt(body)
	if err != nil {
		return nil, fmt.Errorf("cannot decrypt vault store %s: %w", path, err)
	}
	defer memguard.WipeBytes(plaintext)

	var doc vaultDocument
	if err = json.Unmarshal(plaintext, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse vault store %s: %w", path, err)
	}
	if doc.KeyRecords == nil {
		doc.KeyRecords = map[string]*KeyRecord{}
	}
	return doc.KeyRecords, nil
}

// saveVaultFile encrypts the record set and writes it to path with a
// versioned header, replacing any existing file atomically.
func saveVaultFile(path string, cipher Cipher, records map[string]*KeyRecord) error {
	plaintext, err := json.Marshal(vaultDocument{KeyRecords: records})
	if err != nil {
		return fmt.Errorf("cannot serialise vault store: %w", err)
	}
	ciphertext, err := cipher.Encrypt(plaintext)
	memguard.WipeBytes(plaintext)
	if err != nil {
		return fmt.Errorf("cannot encrypt vault store: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(createHeader(FileTypeKeyVault, Version10))
	buf.WriteString(HeaderDelimiter)
	buf.Write(ciphertext)
	if err = writeSecureFile(path, buf.Bytes()); err != nil {
		return &OpenFileError{Op: "save", Path: path, Err: err}
	}
	return nil
}
