package winvault

import "os"

// persistorV10 handles the legacy profile layout: no header, the entire file
// is the protected serialized bundle.  Its cipher carries the machine GUID
// as entropy, which is how legacy files were written.
type persistorV10 struct {
	path   string
	cipher Cipher
}

func (p *persistorV10) load() ([]Profile, string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, "", &OpenFileError{Op: "read", Path: p.path, Err: err}
	}
	return decodeProfiles(raw, p.cipher)
}

func (p *persistorV10) save(profiles []Profile, activeID string) error {
	ciphertext, err := encodeProfiles(profiles, activeID, p.cipher)
	if err != nil {
		return err
	}
	if err = writeSecureFile(p.path, ciphertext); err != nil {
		return &OpenFileError{Op: "write", Path: p.path, Err: err}
	}
	return nil
}
