package winvault

import (
	"fmt"
)

// Options configures persistor and key vault construction.
//
// All fields are optional; the zero value selects the platform default file
// locations, the user protection scope, and the default (legacy) output
// format.  Paths never carry key material, so the whole structure is safe to
// serialize into configuration files.
type Options struct {
	// ProfileFilePath overrides the device profile bundle location.  Empty
	// selects the platform default (see DefaultProfilePath).
	ProfileFilePath string `json:"profile_file_path,omitempty"`

	// FormatVersionOverride pins the output format version for profile
	// saves.  Empty defers to the version found on disk, falling back to
	// the legacy format.  Valid values are Version10 and Version11.
	FormatVersionOverride string `json:"format_version,omitempty"`

	// VaultFilePath overrides the key vault backing file location.  Empty
	// selects the platform default (see DefaultKeyVaultPath).
	VaultFilePath string `json:"vault_file_path,omitempty"`

	// MachineScope binds protection to the local machine instead of the
	// current user profile.  Ciphertext written with one scope cannot be
	// read with the other.
	MachineScope bool `json:"machine_scope"`

	// UserID identifies the operator in audit events.
	UserID string `json:"-"`
}

// Validate checks the Options for consistency.
func (o Options) Validate() error {
	switch o.FormatVersionOverride {
	case "", Version10, Version11:
		return nil
	default:
		return fmt.Errorf("unknown format version override: %q", o.FormatVersionOverride)
	}
}
