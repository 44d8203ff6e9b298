//go:build windows

package dpapi

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const platformSupported = true

// CryptProtectData flags.  UI prompts are always forbidden; this code runs
// in services and headless processes.
const (
	cryptprotectUIForbidden  = 0x1
	cryptprotectLocalMachine = 0x4
)

func protectFlags(scope Scope) uint32 {
	flags := uint32(cryptprotectUIForbidden)
	if scope == ScopeMachine {
		flags |= cryptprotectLocalMachine
	}
	return flags
}

func newBlob(data []byte) *windows.DataBlob {
	if len(data) == 0 {
		return nil
	}
	return &windows.DataBlob{
		Size: uint32(len(data)),
		Data: &data[0],
	}
}

// copyAndFree copies the output blob into Go-managed memory and releases the
// LocalAlloc buffer the platform handed back.
func copyAndFree(out *windows.DataBlob) []byte {
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data)))
	buf := unsafe.Slice(out.Data, out.Size)
	cp := make([]byte, len(buf))
	copy(cp, buf)
	return cp
}

func protectData(plaintext, entropy []byte, scope Scope) ([]byte, error) {
	in := newBlob(plaintext)
	var out windows.DataBlob
	if err := windows.CryptProtectData(in, nil, newBlob(entropy), 0, nil, protectFlags(scope), &out); err != nil {
		return nil, &PlatformError{Op: "CryptProtectData", Err: err}
	}
	return copyAndFree(&out), nil
}

func unprotectData(ciphertext, entropy []byte, scope Scope) ([]byte, error) {
	in := newBlob(ciphertext)
	var out windows.DataBlob
	if err := windows.CryptUnprotectData(in, nil, newBlob(entropy), 0, nil, protectFlags(scope), &out); err != nil {
		return nil, &PlatformError{Op: "CryptUnprotectData", Err: err}
	}
	return copyAndFree(&out), nil
}
