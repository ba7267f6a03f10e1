// Package bytesize provides the byte-count type used by upload size
// limits in the configuration.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a number of bytes parsed from strings like "50MB", "10MiB"
// or "1048576". Sizes are whole numbers; fractional values are rejected
// because upload limits are always exact byte counts.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000 * B
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024 * B
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// ParseByteSize parses a human-readable size. The suffix is
// case-insensitive and a trailing "B" is optional: "M", "MB", "Mi" and
// "MiB" are all accepted, as is a bare number of bytes.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := len(trimmed)
	for split > 0 {
		c := trimmed[split-1]
		if c >= '0' && c <= '9' {
			break
		}
		split--
	}

	num, err := strconv.ParseUint(strings.TrimSpace(trimmed[:split]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: whole number expected", s)
	}

	unit, err := parseUnit(strings.TrimSpace(trimmed[split:]))
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	return ByteSize(num) * unit, nil
}

func parseUnit(suffix string) (ByteSize, error) {
	switch strings.TrimSuffix(strings.ToLower(suffix), "b") {
	case "":
		return B, nil
	case "k":
		return KB, nil
	case "m":
		return MB, nil
	case "g":
		return GB, nil
	case "t":
		return TB, nil
	case "ki":
		return KiB, nil
	case "mi":
		return MiB, nil
	case "gi":
		return GiB, nil
	case "ti":
		return TiB, nil
	default:
		return 0, fmt.Errorf("unknown unit %q", suffix)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields
// decode from config strings.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size with the largest unit that divides it evenly,
// so a value written by SaveConfig parses back to the same byte count.
func (b ByteSize) String() string {
	units := []struct {
		suffix string
		size   ByteSize
	}{
		{"TiB", TiB},
		{"TB", TB},
		{"GiB", GiB},
		{"GB", GB},
		{"MiB", MiB},
		{"MB", MB},
		{"KiB", KiB},
		{"KB", KB},
	}
	for _, u := range units {
		if b >= u.size && b%u.size == 0 {
			return fmt.Sprintf("%d%s", uint64(b/u.size), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", uint64(b))
}

// MarshalYAML writes the human-readable form so generated config files
// stay readable instead of carrying raw byte counts.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}
