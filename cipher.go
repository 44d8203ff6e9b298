package winvault

// Cipher is the protection capability consumed by the persistors and the key
// vault.  The production implementation lives in the dpapi package and
// delegates to the operating system's data protection service; tests inject
// their own.
//
// Implementations must reject empty plaintext or ciphertext before any
// platform call is attempted.
type Cipher interface {
	// ID returns the short identifier of the protection scheme (e.g. "dpapi").
	ID() string

	// Label returns a human-readable name for the protection scheme.
	Label() string

	// Encrypt protects the plaintext and returns the ciphertext.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt.
	Decrypt(ciphertext []byte) ([]byte, error)
}
