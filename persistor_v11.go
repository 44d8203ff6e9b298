package winvault

import (
	"bytes"
	"fmt"
	"os"
)

// persistorV11 handles the versioned profile layout: a JSON type header,
// the delimiter, then the protected serialized bundle.  Files in this layout
// are protected without extra entropy.
//
// The header is a forward-compatibility seam: a future layout change only
// needs a new version tag and a new variant; detection stays centralized in
// the facade.
type persistorV11 struct {
	path   string
	cipher Cipher
}

func (p *persistorV11) load() ([]Profile, string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, "", &OpenFileError{Op: "read", Path: p.path, Err: err}
	}
	header, body := splitHeader(raw)
	if header == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrMissingHeader, p.path)
	}
	version, err := parseHeaderVersion(header, FileTypeProfiles)
	if err != nil {
		return nil, "", err
	}
	if version != Version11 {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	return decodeProfiles(body, p.cipher)
}

func (p *persistorV11) save(profiles []Profile, activeID string) error {
	ciphertext, err := encodeProfiles(profiles, activeID, p.cipher)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.Write(createHeader(FileTypeProfiles, Version11))
	buf.WriteString(HeaderDelimiter)
	buf.Write(ciphertext)
	if err = writeSecureFile(p.path, buf.Bytes()); err != nil {
		return &OpenFileError{Op: "write", Path: p.path, Err: err}
	}
	return nil
}
