// Package bytesize parses human-readable sizes used in configuration files
// and script definitions ("256Ki", "16KiB", "4096").
package bytesize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. Binary suffixes (Ki, Mi, Gi) scale by 1024,
// decimal suffixes (K, M, G) by 1000, and a bare number is taken as bytes.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000 * B
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB

	KiB ByteSize = 1 << 10
	MiB ByteSize = 1 << 20
	GiB ByteSize = 1 << 30
)

var sizeRe = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([a-z]*)\s*$`)

var suffixes = map[string]ByteSize{
	"": B, "b": B,
	"k": KB, "kb": KB,
	"m": MB, "mb": MB,
	"g": GB, "gb": GB,
	"ki": KiB, "kib": KiB,
	"mi": MiB, "mib": MiB,
	"gi": GiB, "gib": GiB,
}

// Parse converts s into a ByteSize.
func Parse(s string) (ByteSize, error) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	unit, ok := suffixes[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit %q", m[2])
	}

	if strings.Contains(m[1], ".") {
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		return ByteSize(f * float64(unit)), nil
	}

	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if n > math.MaxUint64/uint64(unit) {
		return 0, fmt.Errorf("byte size %q overflows", s)
	}
	return ByteSize(n) * unit, nil
}

// UnmarshalText lets ByteSize fields decode directly from YAML and mapstructure.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText renders the exact value so a saved config round-trips.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.exact()), nil
}

func (b ByteSize) exact() string {
	switch {
	case b == 0:
		return "0"
	case b%GiB == 0:
		return strconv.FormatUint(uint64(b/GiB), 10) + "Gi"
	case b%MiB == 0:
		return strconv.FormatUint(uint64(b/MiB), 10) + "Mi"
	case b%KiB == 0:
		return strconv.FormatUint(uint64(b/KiB), 10) + "Ki"
	default:
		return strconv.FormatUint(uint64(b), 10)
	}
}

// String formats b for humans, e.g. "1.50KiB".
func (b ByteSize) String() string {
	switch {
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Uint32 narrows b for local-store quantities, failing when it does not fit.
func (b ByteSize) Uint32() (uint32, error) {
	if b > math.MaxUint32 {
		return 0, fmt.Errorf("byte size %s exceeds 32 bits", b)
	}
	return uint32(b), nil
}
