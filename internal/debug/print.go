//go:build !debug

package debug

// Debug reports whether the binary was built with the debug tag.
const Debug = false

// Print is a no-op without the debug tag; calls compile away to argument
// evaluation only.
func Print(format string, args ...interface{}) {}
