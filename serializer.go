package winvault

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/awnumar/memguard"
)

// profileDocument is the plaintext form of a persisted profile bundle.
type profileDocument struct {
	ActiveDeviceID string    `json:"activeDeviceId"`
	Profiles       []Profile `json:"profiles"`
}

// encodeProfiles serializes the bundle and protects it with the given
// cipher.  The intermediate plaintext is wiped once the ciphertext exists.
func encodeProfiles(profiles []Profile, activeID string, cipher Cipher) ([]byte, error) {
	doc := profileDocument{
		ActiveDeviceID: activeID,
		Profiles:       profiles,
	}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize profiles: %w", err)
	}
	ciphertext, err := cipher.Encrypt(plaintext)
	memguard.WipeBytes(plaintext)
	if err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// decodeProfiles reverses encodeProfiles.
func decodeProfiles(ciphertext []byte, cipher Cipher) ([]Profile, string, error) {
	plaintext, err := cipher.Decrypt(ciphertext)
	if err != nil {
		return nil, "", err
	}
	defer memguard.WipeBytes(plaintext)

	var doc profileDocument
	if err = json.Unmarshal(plaintext, &doc); err != nil {
		return nil, "", fmt.Errorf("failed to parse profile data: %w", err)
	}
	if doc.Profiles == nil {
		doc.Profiles = []Profile{}
	}
	return doc.Profiles, doc.ActiveDeviceID, nil
}

// splitHeader separates a leading JSON header document from the opaque body
// of a persisted file.  A header exists only when the stream begins with a
// complete brace-balanced JSON object immediately followed by
// HeaderDelimiter; anything else is a legacy stream with no header.  The
// brace scan is string-aware, so ciphertext bytes that happen to contain the
// delimiter can never be misread as a header boundary.
func splitHeader(raw []byte) (header []byte, body []byte) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, raw
	}
	end := jsonObjectEnd(raw)
	if end < 0 {
		return nil, raw
	}
	rest := raw[end:]
	if !bytes.HasPrefix(rest, []byte(HeaderDelimiter)) {
		return nil, raw
	}
	return raw[:end], rest[len(HeaderDelimiter):]
}

// jsonObjectEnd returns the index one past the closing brace of the JSON
// object starting at raw[0], or -1 if the object never closes.
func jsonObjectEnd(raw []byte) int {
	depth := 0
	inString := false
	escaped := false
	for i, b := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
