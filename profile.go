package winvault

// Profile is one named credential record within a persisted device profile
// bundle.  Key material fields are serialized as base64 by encoding/json.
type Profile struct {
	Name              string `json:"name"`
	DeviceID          string `json:"deviceId"`
	Server            string `json:"server"`
	Keyspace          string `json:"keyspace"`
	EnrollmentKey     []byte `json:"enrollmentKey,omitempty"`
	TransportKey      []byte `json:"transportKey,omitempty"`
	CreationTimestamp int64  `json:"creationTimestamp"`
}

// ProfilePersistor is the capability the host SDK consumes to persist a
// device profile bundle.  Implementations protect the serialized bundle at
// rest; the bundle itself is owned by the caller and loaded fresh on every
// call.
type ProfilePersistor interface {
	// LoadAllProfiles returns the persisted profile list and the device ID
	// of the active profile.  A missing backing file is the first-run case
	// and yields an empty list with an empty active ID, not an error.
	LoadAllProfiles() ([]Profile, string, error)

	// SaveAllProfiles replaces the persisted bundle with the given profile
	// list and active profile designation.
	SaveAllProfiles(profiles []Profile, activeID string) error

	// FilePath returns the backing file location in use.
	FilePath() string

	// SetFilePath overrides the backing file location.  An empty path
	// restores the platform default.
	SetFilePath(path string)
}
