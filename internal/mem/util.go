// Package mem applies best-effort memory hardening for processes that hold
// key material.  Locking is advisory: the key vault keeps working at
// whatever level the platform grants and relies on explicit buffer wiping
// as the baseline.
package mem

// ProtectionLevel reports how much of the process memory could be pinned.
type ProtectionLevel int

const (
	// ProtectionNone means the lock attempt failed outright.
	ProtectionNone ProtectionLevel = iota

	// ProtectionPartial means locking is unavailable or was refused, and
	// only buffer wiping applies.
	ProtectionPartial

	// ProtectionFull means process memory is pinned and will not be
	// swapped to disk.
	ProtectionFull
)

// Lock tries to pin process memory so key material cannot reach swap.
// It returns the level actually achieved.
func Lock() (ProtectionLevel, error) {
	return lockMemoryPlatform()
}

// Unlock releases a previously applied memory lock.
func Unlock() error {
	return unlockMemoryPlatform()
}
