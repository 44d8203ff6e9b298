//go:build !windows

package dpapi

const platformSupported = false

// The constructors reject non-Windows platforms, so these are unreachable in
// practice; they exist to keep the package compiling everywhere.

func protectData(plaintext, entropy []byte, scope Scope) ([]byte, error) {
	return nil, &PlatformError{Op: "CryptProtectData", Err: ErrUnsupportedPlatform}
}

func unprotectData(ciphertext, entropy []byte, scope Scope) ([]byte, error) {
	return nil, &PlatformError{Op: "CryptUnprotectData", Err: ErrUnsupportedPlatform}
}
