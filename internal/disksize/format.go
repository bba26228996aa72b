package disksize

import (
	"fmt"
	"strings"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

const unlimitedText = "unlimited"

var units = []struct {
	size Size
	name string
}{
	{PiB, "PiB"},
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// Parse converts a human readable size into a Size.
//
// Accepted forms include "4 GiB", "4GiB", "4G", "512 MiB", "1024" (bytes)
// and "unlimited". All units are binary (1 KiB = 1024 B).
func Parse(text string) (Size, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Zero, fmt.Errorf("invalid size: empty string")
	}
	if t == unlimitedText {
		return Unlimited, nil
	}

	t = strings.ReplaceAll(t, " ", "")
	// datasize knows "kb", "mb", ... as binary units; accept the IEC names too.
	if strings.HasSuffix(t, "ib") {
		t = strings.TrimSuffix(t, "ib") + "b"
	}

	v, err := datasize.ParseString(t)
	if err != nil {
		return Zero, fmt.Errorf("invalid size %q: %w", text, err)
	}
	if Size(v.Bytes()) == Unlimited {
		return Zero, fmt.Errorf("invalid size %q: too large, use %q", text, unlimitedText)
	}
	return Size(v.Bytes()), nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) Size {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the exact representation of s using the largest binary
// unit that divides it ("4 GiB", "1536 MiB", "3 B").
func (s Size) String() string {
	if s.IsUnlimited() {
		return unlimitedText
	}
	if s.IsZero() {
		return "0 B"
	}
	for _, u := range units {
		if s%u.size == 0 {
			return fmt.Sprintf("%d %s", uint64(s/u.size), u.name)
		}
	}
	return fmt.Sprintf("%d B", uint64(s))
}

// Human returns an approximate, rounded representation suitable for tables
// (e.g. "9.8 GB").
func (s Size) Human() string {
	if s.IsUnlimited() {
		return unlimitedText
	}
	return datasize.ByteSize(s).HumanReadable()
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface.
func (s Size) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Plain integers
// are taken as bytes.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("size must be a scalar, got %v at line %d", node.Tag, node.Line)
	}
	return s.UnmarshalText([]byte(node.Value))
}
