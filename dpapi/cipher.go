// Package dpapi wraps the Windows Data Protection API.
//
// DPAPI is a service provided by the Windows operating system that protects
// data using the user or machine credentials.  When the machine key is used
// to encrypt data, decryption is only possible on the same machine.  When
// the user profile key is used, decryption is only possible in the context
// of the same user profile.
//
// The package compiles on every platform so that consumers can be built and
// tested anywhere; constructing a Cipher outside Windows fails with
// ErrUnsupportedPlatform.
package dpapi

import (
	"errors"
	"fmt"
	"runtime"
)

// Scope selects which credential the protection service binds ciphertext to.
type Scope int

const (
	// ScopeUser binds ciphertext to the current user profile.
	ScopeUser Scope = iota

	// ScopeMachine binds ciphertext to the local machine.
	ScopeMachine
)

func (s Scope) String() string {
	if s == ScopeMachine {
		return "machine"
	}
	return "user"
}

var (
	// ErrUnsupportedPlatform is returned by constructors on any operating
	// system other than Windows.
	ErrUnsupportedPlatform = errors.New("dpapi is not available on this operating system")

	// ErrInvalidInput is returned when empty plaintext or ciphertext is
	// passed in.  The platform call is never attempted in that case.
	ErrInvalidInput = errors.New("empty input")
)

// PlatformError wraps a failure reported by the native protection service.
type PlatformError struct {
	Op  string // the native call that failed
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Cipher protects and unprotects byte slices through DPAPI.  It is a
// stateless value: the entropy and scope are fixed at construction and no
// native handle is held between calls.
type Cipher struct {
	entropy []byte
	scope   Scope
}

// NewCipher returns a Cipher bound to the given scope.  The optional entropy
// string is mixed into the protection by the platform service; both sides of
// a round trip must supply the same value.  Fails with
// ErrUnsupportedPlatform when not running on Windows.
func NewCipher(entropy string, scope Scope) (*Cipher, error) {
	if !platformSupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
	}
	c := &Cipher{scope: scope}
	if entropy != "" {
		c.entropy = []byte(entropy)
	}
	return c, nil
}

// ID returns the protection scheme identifier.
func (c *Cipher) ID() string {
	return "dpapi"
}

// Label returns a human-readable name for the scheme.
func (c *Cipher) Label() string {
	return "DPAPI Cipher"
}

// Encrypt protects the plaintext.  Empty input is rejected before the
// platform call.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: plaintext", ErrInvalidInput)
	}
	return protectData(plaintext, c.entropy, c.scope)
}

// Decrypt reverses Encrypt.  Empty input is rejected before the platform
// call.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext", ErrInvalidInput)
	}
	return unprotectData(ciphertext, c.entropy, c.scope)
}
