//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package logger

// isTerminal disables colors where terminal detection is unsupported.
func isTerminal(uintptr) bool {
	return false
}
