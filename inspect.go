package winvault

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileInfo describes the on-disk layout of a protected store file.  It is
// derived from the header alone; the ciphertext body is never decrypted, so
// inspection works on any platform and on files belonging to other users.
type FileInfo struct {
	Path          string `json:"path"`
	Size          int64  `json:"size"`
	Legacy        bool   `json:"legacy"`
	FileTypeID    string `json:"file_type_id,omitempty"`
	Format        string `json:"format,omitempty"`
	FormatVersion string `json:"format_version,omitempty"`
	PayloadBytes  int    `json:"payload_bytes"`
}

// InspectFile reports the layout of a protected store file.  A file with no
// recognizable header is reported as legacy rather than failing, since the
// legacy layout is headerless by definition.
func InspectFile(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, &OpenFileError{Op: "inspect", Path: path, Err: err}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &OpenFileError{Op: "inspect", Path: path, Err: err}
	}

	info := &FileInfo{
		Path: path,
		Size: stat.Size(),
	}
	header, body := splitHeader(raw)
	if header == nil {
		info.Legacy = true
		info.PayloadBytes = len(raw)
		return info, nil
	}

	var parsed fileHeader
	if err = json.Unmarshal(header, &parsed); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidFormat, err)
	}
	info.FileTypeID = parsed.FileTypeID
	info.Format = parsed.Format
	info.FormatVersion = parsed.Version
	info.PayloadBytes = len(body)
	return info, nil
}
