package winvault

import (
	"encoding/json"
	"fmt"
)

// File type header constants.  A versioned file begins with a small JSON
// document identifying the file type, the protection format, and the layout
// version, followed by HeaderDelimiter and the ciphertext body.
const (
	// FileTypeProfiles identifies a persisted device profile bundle.
	FileTypeProfiles = "winvault-device-profiles"

	// FileTypeKeyVault identifies a persisted key vault record map.
	FileTypeKeyVault = "winvault-key-vault"

	// FormatDpapi is the protection scheme named in file headers.
	FormatDpapi = "dpapi"

	// Version10 is the legacy profile layout: no header, the whole file is
	// ciphertext.
	Version10 = "1.0"

	// Version11 is the versioned profile layout: header, delimiter,
	// ciphertext.
	Version11 = "1.1"

	// HeaderDelimiter separates the header document from the ciphertext
	// body in versioned files.
	HeaderDelimiter = "\r\n"
)

type fileHeader struct {
	FileTypeID string `json:"fileTypeId"`
	Format     string `json:"format"`
	Version    string `json:"version"`
}

// createHeader fabricates a file type header naming the given version.  The
// output is compact JSON with no embedded newlines, so the delimiter that
// follows it is unambiguous.
func createHeader(fileTypeID, version string) []byte {
	header := fileHeader{
		FileTypeID: fileTypeID,
		Format:     FormatDpapi,
		Version:    version,
	}
	// Marshal of a flat string struct cannot fail.
	data, _ := json.Marshal(header)
	return data
}

// parseHeaderVersion validates a header document and returns the version it
// names.  A nil header means the file has no header (legacy layout) and
// yields an empty version with no error.  A header whose fileTypeId or
// format does not match the expected constants fails with ErrInvalidFormat,
// regardless of the version field.  An absent version parses as the empty
// string; the caller treats that as unversioned.
func parseHeaderVersion(header []byte, wantFileTypeID string) (string, error) {
	if header == nil {
		return "", nil
	}
	var parsed fileHeader
	if err := json.Unmarshal(header, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if parsed.FileTypeID != wantFileTypeID {
		return "", fmt.Errorf("%w: unexpected fileTypeId %q", ErrInvalidFormat, parsed.FileTypeID)
	}
	if parsed.Format != FormatDpapi {
		return "", fmt.Errorf("%w: unexpected format %q", ErrInvalidFormat, parsed.Format)
	}
	return parsed.Version, nil
}
