//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package mem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Unix hosts are the development and CI platforms for this module; locking
// there keeps test runs honest about key material handling.
func lockMemoryPlatform() (ProtectionLevel, error) {
	err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
	if err == nil {
		return ProtectionFull, nil
	}
	// EPERM and ENOSYS are common in containers; degrade, do not fail.
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOSYS) {
		return ProtectionPartial, nil
	}
	return ProtectionNone, fmt.Errorf("failed to lock memory: %w", err)
}

func unlockMemoryPlatform() error {
	if err := unix.Munlockall(); err != nil {
		return fmt.Errorf("failed to unlock memory: %w", err)
	}
	return nil
}
