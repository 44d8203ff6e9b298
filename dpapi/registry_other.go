//go:build !windows

package dpapi

// MachineGUID is only available on Windows.
func MachineGUID() (string, error) {
	return "", ErrUnsupportedPlatform
}
