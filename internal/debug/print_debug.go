//go:build debug

package debug

import "fmt"

// Debug reports whether the binary was built with the debug tag.
const Debug = true

// Print writes a trace line to stdout.  Never pass key material or
// plaintext buffers; traces end up in logs.
func Print(format string, args ...interface{}) {
	fmt.Printf("DEBUG: "+format, args...)
}
