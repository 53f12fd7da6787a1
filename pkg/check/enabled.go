//go:build !nocheck

package check

// Enabled reports whether validation bookkeeping is compiled in.
const Enabled = true
