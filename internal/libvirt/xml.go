package libvirt

import (
	"fmt"
	"strings"
)

// Marshaler is implemented by the libvirtxml document types.
type Marshaler interface {
	Marshal() (string, error)
}

// Document marshals a libvirtxml document without the XML declaration, the
// form libvirt expects for Define and Create calls.
func Document(doc Marshaler) (string, error) {
	s, err := doc.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}

	s = strings.TrimPrefix(s, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>")
	return strings.TrimSpace(s), nil
}
