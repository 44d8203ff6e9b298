package winvault

import (
	"fmt"
	"os"
	"path/filepath"

	"southwinds.dev/winvault/audit"
	"southwinds.dev/winvault/dpapi"
	"southwinds.dev/winvault/internal/debug"
)

// Default filesystem locations, relative to the user profile directory.
// New profile bundles are persisted under the Roaming folder; the LocalLow
// location is a legacy convention that is only used when a file already
// exists there.
const (
	profileFolderRoaming  = "AppData/Roaming/SouthWinds"
	profileFolderLocalLow = "AppData/LocalLow/SouthWinds"
	profileFileName       = "DeviceProfiles.dat"
)

// formatPersistor is the shared contract of the two layout variants.  The
// facade selects a variant value per operation; there is no other dispatch.
type formatPersistor interface {
	load() ([]Profile, string, error)
	save(profiles []Profile, activeID string) error
}

// Persistor brokers access to a persisted device profile bundle, protected
// using the Windows data protection service.  It implements
// ProfilePersistor.
//
// On load it sniffs the file for a version header and delegates to the
// matching layout variant; on save the output version is chosen from the
// caller override, the version already on disk, or the legacy default, in
// that order of precedence.
//
// A Persistor keeps no profile state between calls and performs no
// locking; callers sharing one backing file across goroutines must
// serialize access themselves.
type Persistor struct {
	defaultPath           string
	overridePath          string
	formatVersionOverride string
	legacyCipher          Cipher
	versionedCipher       Cipher
	audit                 audit.Logger
}

// NewPersistor creates a persistor using the platform data protection
// service.  Fails with dpapi.ErrUnsupportedPlatform when not running on
// Windows.  A nil audit logger disables audit logging.
func NewPersistor(options Options, auditLogger audit.Logger) (*Persistor, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	scope := dpapi.ScopeUser
	if options.MachineScope {
		scope = dpapi.ScopeMachine
	}

	// The legacy layout ties its ciphertext to the machine GUID as well as
	// the protection scope.
	guid, err := dpapi.MachineGUID()
	if err != nil {
		return nil, fmt.Errorf("failed to read machine GUID: %w", err)
	}
	legacy, err := dpapi.NewCipher(guid, scope)
	if err != nil {
		return nil, err
	}
	versioned, err := dpapi.NewCipher("", scope)
	if err != nil {
		return nil, err
	}

	p, err := NewPersistorWithCiphers(legacy, versioned, auditLogger)
	if err != nil {
		return nil, err
	}
	p.overridePath = options.ProfileFilePath
	p.formatVersionOverride = options.FormatVersionOverride
	return p, nil
}

// NewPersistorWithCiphers creates a persistor with explicit protection
// capabilities for the two layouts.  This is the seam used by tests and by
// hosts that bring their own protection service binding.
func NewPersistorWithCiphers(legacy, versioned Cipher, auditLogger audit.Logger) (*Persistor, error) {
	if legacy == nil || versioned == nil {
		return nil, fmt.Errorf("both layout ciphers are required")
	}
	if auditLogger == nil {
		auditLogger = audit.NewNoOpLogger()
	}
	defaultPath, err := DefaultProfilePath()
	if err != nil {
		return nil, err
	}
	return &Persistor{
		defaultPath:     defaultPath,
		legacyCipher:    legacy,
		versionedCipher: versioned,
		audit:           auditLogger,
	}, nil
}

// DefaultProfilePath computes the platform-conventional location of the
// device profile bundle for the current user.  The Roaming location is
// checked first, then the legacy LocalLow location; when neither file
// exists the Roaming convention wins.
func DefaultProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user profile directory: %w", err)
	}
	roaming := filepath.Join(home, filepath.FromSlash(profileFolderRoaming), profileFileName)
	localLow := filepath.Join(home, filepath.FromSlash(profileFolderLocalLow), profileFileName)

	if ok, _ := fileExists(roaming); ok {
		return roaming, nil
	}
	if ok, _ := fileExists(localLow); ok {
		return localLow, nil
	}
	return roaming, nil
}

// FilePath returns the backing file location in use.
func (p *Persistor) FilePath() string {
	if isEmpty(p.overridePath) {
		return p.defaultPath
	}
	return p.overridePath
}

// SetFilePath overrides the backing file location.  An empty path restores
// the platform default.
func (p *Persistor) SetFilePath(path string) {
	p.overridePath = path
}

// FormatVersionOverride returns the caller-set output format version, if any.
func (p *Persistor) FormatVersionOverride() string {
	return p.formatVersionOverride
}

// SetFormatVersionOverride sets the output format version preference.  It
// takes precedence over the version found on disk; set Version11 to force
// the headered layout, or empty to restore default behavior.
func (p *Persistor) SetFormatVersionOverride(version string) {
	p.formatVersionOverride = version
}

// sniffVersion reads the backing file once and extracts the header version.
// The second return reports whether the file exists at all.
func (p *Persistor) sniffVersion(path string) (string, bool, error) {
	exists, err := fileExists(path)
	if err != nil {
		return "", false, &OpenFileError{Op: "read", Path: path, Err: err}
	}
	if !exists {
		return "", false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", true, &OpenFileError{Op: "read", Path: path, Err: err}
	}
	header, _ := splitHeader(raw)
	version, err := parseHeaderVersion(header, FileTypeProfiles)
	if err != nil {
		return "", true, err
	}
	return version, true, nil
}

// variantFor returns the layout variant matching the given version.  Every
// version other than Version11 maps to the legacy layout; unrecognized
// versions fall back rather than fail so that files written by older
// releases keep loading.
func (p *Persistor) variantFor(version string) formatPersistor {
	if version == Version11 {
		return &persistorV11{path: p.FilePath(), cipher: p.versionedCipher}
	}
	return &persistorV10{path: p.FilePath(), cipher: p.legacyCipher}
}

// LoadAllProfiles reads the persisted bundle.  A missing backing file is the
// first-run case: it yields an empty list and an empty active ID, no error.
func (p *Persistor) LoadAllProfiles() ([]Profile, string, error) {
	requestID := newRequestID()
	path := p.FilePath()

	version, exists, err := p.sniffVersion(path)
	if err != nil {
		logAudit(p.audit, requestID, "PROFILES_LOAD_FAILED", err, map[string]interface{}{
			"path": path,
		})
		return nil, "", err
	}
	if !exists {
		debug.Print("LoadAllProfiles: no file at %s, returning empty bundle\n", path)
		logAudit(p.audit, requestID, "PROFILES_LOAD_COMPLETED", nil, map[string]interface{}{
			"path":      path,
			"first_run": true,
		})
		return []Profile{}, "", nil
	}

	profiles, activeID, err := p.variantFor(version).load()
	if err != nil {
		logAudit(p.audit, requestID, "PROFILES_LOAD_FAILED", err, map[string]interface{}{
			"path":           path,
			"header_version": version,
		})
		return nil, "", err
	}
	logAudit(p.audit, requestID, "PROFILES_LOAD_COMPLETED", nil, map[string]interface{}{
		"path":           path,
		"header_version": version,
		"profile_count":  len(profiles),
	})
	return profiles, activeID, nil
}

// SaveAllProfiles replaces the persisted bundle.  The output format version
// is chosen with the precedence: caller override, then the version already
// on disk, then the legacy default.
func (p *Persistor) SaveAllProfiles(profiles []Profile, activeID string) error {
	requestID := newRequestID()
	path := p.FilePath()

	version, _, err := p.sniffVersion(path)
	if err != nil {
		logAudit(p.audit, requestID, "PROFILES_SAVE_FAILED", err, map[string]interface{}{
			"path": path,
		})
		return err
	}
	if !isEmpty(p.formatVersionOverride) {
		version = p.formatVersionOverride
	}
	if isEmpty(version) {
		version = Version10
	}

	if err = p.variantFor(version).save(profiles, activeID); err != nil {
		logAudit(p.audit, requestID, "PROFILES_SAVE_FAILED", err, map[string]interface{}{
			"path":           path,
			"format_version": version,
		})
		return err
	}
	logAudit(p.audit, requestID, "PROFILES_SAVE_COMPLETED", nil, map[string]interface{}{
		"path":           path,
		"format_version": version,
		"profile_count":  len(profiles),
	})
	return nil
}
