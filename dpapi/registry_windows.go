//go:build windows

package dpapi

import (
	"golang.org/x/sys/windows/registry"
)

const (
	machineGUIDKey   = `SOFTWARE\Microsoft\Cryptography`
	machineGUIDValue = "MachineGuid"
)

// MachineGUID reads the machine GUID from the registry.  The legacy profile
// format uses it as protection entropy, tying the ciphertext to the machine
// in addition to the user profile.
//
// The 64-bit registry view is consulted first: 32-bit processes on a 64-bit
// OS are redirected to the WOW64 hive by default, which does not carry this
// key.
func MachineGUID() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, machineGUIDKey,
		registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		key, err = registry.OpenKey(registry.LOCAL_MACHINE, machineGUIDKey, registry.QUERY_VALUE)
	}
	if err != nil {
		return "", &PlatformError{Op: "RegOpenKeyEx", Err: err}
	}
	defer key.Close()

	guid, _, err := key.GetStringValue(machineGUIDValue)
	if err != nil {
		return "", &PlatformError{Op: "RegQueryValueEx", Err: err}
	}
	return guid, nil
}
