package winvault

import (
	"fmt"
	"os"
	"path/filepath"

	"southwinds.dev/winvault/audit"
	"southwinds.dev/winvault/dpapi"
	"southwinds.dev/winvault/internal/debug"
	"southwinds.dev/winvault/internal/mem"
)

// Default filesystem location of the key vault store, relative to the user
// profile directory.
const (
	keyVaultFolder   = "AppData/LocalLow/SouthWinds/KeyVaults"
	keyVaultFileName = "KeyVaultDpapi.dat"
)

const (
	vaultID            = "dpapi"
	vaultLabel         = "Windows DPAPI Key Vault"
	vaultSecurityLevel = 100
)

// KeyRecord is one protected key held in the vault, addressed by ID.
// Timestamps are Unix seconds in server time; a zero ExpirationServerTime
// means the record never expires.
type KeyRecord struct {
	ID                   string              `json:"id"`
	Key                  []byte              `json:"key"`
	Attributes           map[string][]string `json:"attributes,omitempty"`
	IssuedServerTime     int64               `json:"issuedServerTime"`
	ExpirationServerTime int64               `json:"expirationServerTime"`
}

// Expired reports whether the record has passed its expiration time.
func (r *KeyRecord) Expired(now int64) bool {
	return r.ExpirationServerTime > 0 && now >= r.ExpirationServerTime
}

// KeyVaultStore is the contract a host application programs against when
// wiring a vault into its key management layer.
type KeyVaultStore interface {
	ID() string
	Label() string
	SecurityLevel() int
	LoadAllKeyRecords() (map[string]*KeyRecord, error)
	SaveAllKeyRecords(records map[string]*KeyRecord) error
	CleanVaultStore()
	FilePath() string
	SetFilePath(path string)
}

// KeyVault stores key records in a single file protected by the Windows
// data protection service, scoped to the current user.  It implements
// KeyVaultStore.
//
// The vault keeps an in-memory copy of the record set and tracks the
// backing file's metadata, so a load against an unchanged file is answered
// with ErrLoadNotNeeded instead of a redundant decrypt.  Instances are not
// safe for concurrent use.
type KeyVault struct {
	cipher       Cipher
	defaultPath  string
	overridePath string
	records      map[string]*KeyRecord
	tracker      *fileModTracker
	protection   mem.ProtectionLevel
	audit        audit.Logger
}

// NewKeyVault creates a vault backed by the platform data protection
// service.  An empty filePath selects the platform-conventional location;
// a nil audit logger disables audit logging.  Fails with
// dpapi.ErrUnsupportedPlatform when not running on Windows.
func NewKeyVault(filePath string, auditLogger audit.Logger) (*KeyVault, error) {
	cipher, err := dpapi.NewCipher("", dpapi.ScopeUser)
	if err != nil {
		return nil, err
	}
	return NewKeyVaultWithCipher(cipher, filePath, auditLogger)
}

// NewKeyVaultWithCipher creates a vault with an explicit protection
// capability.  This is the seam used by tests and by hosts that bring
// their own protection service binding.
func NewKeyVaultWithCipher(cipher Cipher, filePath string, auditLogger audit.Logger) (*KeyVault, error) {
	if cipher == nil {
		return nil, fmt.Errorf("a cipher is required")
	}
	if auditLogger == nil {
		auditLogger = audit.NewNoOpLogger()
	}
	defaultPath, err := DefaultKeyVaultPath()
	if err != nil {
		return nil, err
	}
	protection, err := mem.Lock()
	if err != nil {
		debug.Print("NewKeyVaultWithCipher: memory lock unavailable: %v\n", err)
	}
	return &KeyVault{
		cipher:       cipher,
		defaultPath:  defaultPath,
		overridePath: filePath,
		records:      map[string]*KeyRecord{},
		protection:   protection,
		audit:        auditLogger,
	}, nil
}

// DefaultKeyVaultPath computes the platform-conventional location of the
// key vault store for the current user.
func DefaultKeyVaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user profile directory: %w", err)
	}
	return filepath.Join(home, filepath.FromSlash(keyVaultFolder), keyVaultFileName), nil
}

func (v *KeyVault) ID() string {
	return vaultID
}

func (v *KeyVault) Label() string {
	return vaultLabel
}

// SecurityLevel rates the protection afforded by this vault relative to
// other vault implementations a host may register.
func (v *KeyVault) SecurityLevel() int {
	return vaultSecurityLevel
}

// FilePath returns the backing file location in use.
func (v *KeyVault) FilePath() string {
	if isEmpty(v.overridePath) {
		return v.defaultPath
	}
	return v.overridePath
}

// SetFilePath overrides the backing file location.  An empty path restores
// the platform default.
func (v *KeyVault) SetFilePath(path string) {
	v.overridePath = path
}

// modPoint samples the backing file metadata, replacing the tracker when
// the path has changed since the last observation.
func (v *KeyVault) modPoint(path string) modResult {
	if v.tracker == nil || v.tracker.filePath() != path {
		v.tracker = newFileModTracker(path)
	}
	return v.tracker.recordFileInfo()
}

// LoadAllKeyRecords reads the vault store and replaces the in-memory record
// set, returning the records keyed by ID.  A missing backing file yields
// ErrResourceNotFound; an unchanged file since the last load or save yields
// ErrLoadNotNeeded and leaves the in-memory set as is.
func (v *KeyVault) LoadAllKeyRecords() (map[string]*KeyRecord, error) {
	requestID := newRequestID()
	path := v.FilePath()

	exists, err := fileExists(path)
	if err != nil {
		err = &OpenFileError{Op: "load", Path: path, Err: err}
		logAudit(v.audit, requestID, "KEYVAULT_LOAD_FAILED", err, map[string]interface{}{
			"path": path,
		})
		return nil, err
	}
	if !exists {
		v.tracker = nil
		return nil, fmt.Errorf("vault store %s: %w", path, ErrResourceNotFound)
	}
	if v.modPoint(path) == modUnchanged {
		debug.Print("LoadAllKeyRecords: %s unchanged, skipping load\n", path)
		return nil, ErrLoadNotNeeded
	}

	records, err := loadVaultFile(path, v.cipher)
	if err != nil {
		logAudit(v.audit, requestID, "KEYVAULT_LOAD_FAILED", err, map[string]interface{}{
			"path": path,
		})
		return nil, err
	}
	v.records = records
	logAudit(v.audit, requestID, "KEYVAULT_LOAD_COMPLETED", nil, map[string]interface{}{
		"path":         path,
		"record_count": len(records),
	})
	return records, nil
}

// SaveAllKeyRecords replaces both the persisted store and the in-memory
// record set.  A nil map clears the vault.
func (v *KeyVault) SaveAllKeyRecords(records map[string]*KeyRecord) error {
	requestID := newRequestID()
	path := v.FilePath()

	if records == nil {
		records = map[string]*KeyRecord{}
	}
	if err := saveVaultFile(path, v.cipher, records); err != nil {
		logAudit(v.audit, requestID, "KEYVAULT_SAVE_FAILED", err, map[string]interface{}{
			"path": path,
		})
		return err
	}
	v.records = records
	// Record the post-write metadata so the next load short-circuits.
	v.modPoint(path)
	logAudit(v.audit, requestID, "KEYVAULT_SAVE_COMPLETED", nil, map[string]interface{}{
		"path":         path,
		"record_count": len(records),
	})
	return nil
}

// CleanVaultStore discards the in-memory record set and deletes the backing
// file.  A file that is already absent is not an error.
func (v *KeyVault) CleanVaultStore() {
	requestID := newRequestID()
	path := v.FilePath()

	v.records = map[string]*KeyRecord{}
	v.tracker = nil

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		logAudit(v.audit, requestID, "KEYVAULT_CLEAN_FAILED", err, map[string]interface{}{
			"path": path,
		})
		debug.Print("CleanVaultStore: failed to remove %s: %v\n", path, err)
		return
	}
	logAudit(v.audit, requestID, "KEYVAULT_CLEAN_COMPLETED", nil, map[string]interface{}{
		"path":    path,
		"existed": err == nil,
	})
}

// Records returns the in-memory record set.  The map is the vault's own;
// callers must not mutate it concurrently with vault operations.
func (v *KeyVault) Records() map[string]*KeyRecord {
	return v.records
}

// GetKey returns the record with the given ID from the in-memory set.
func (v *KeyVault) GetKey(id string) (*KeyRecord, bool) {
	record, ok := v.records[id]
	return record, ok
}

// SetKey adds or replaces a record in the in-memory set.  The change is not
// persisted until SaveAllKeyRecords is called.
func (v *KeyVault) SetKey(record *KeyRecord) error {
	if record == nil {
		return fmt.Errorf("a key record is required")
	}
	if isEmpty(record.ID) {
		return fmt.Errorf("a key record requires an ID")
	}
	if len(record.Key) == 0 {
		return fmt.Errorf("key record %s has no key material", record.ID)
	}
	if record.IssuedServerTime == 0 {
		record.IssuedServerTime = nowUnix()
	}
	v.records[record.ID] = record
	return nil
}

// RemoveKey drops the record with the given ID from the in-memory set,
// reporting whether it was present.
func (v *KeyVault) RemoveKey(id string) bool {
	if _, ok := v.records[id]; !ok {
		return false
	}
	delete(v.records, id)
	return true
}

// ExpireKeys sweeps the in-memory set, wiping and dropping records past
// their expiration time, and returns the number removed.
func (v *KeyVault) ExpireKeys() int {
	now := nowUnix()
	removed := 0
	for id, record := range v.records {
		if record.Expired(now) {
			wipeKeyRecord(record)
			delete(v.records, id)
			removed++
		}
	}
	return removed
}
