package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseCallbacks decodes the "callbacks" form field into a callback list.
//
// Clients routinely mangle the field, so two repairs are applied before
// decoding: a bare object is wrapped into a one-element array, and
// "},{"-joined concatenations of objects are re-wrapped into an array.
// An empty field yields an empty list.
func ParseCallbacks(raw string) ([]Callback, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	repaired := raw
	switch {
	case strings.HasPrefix(raw, "["):
		// already an array
	case strings.HasPrefix(raw, "{") && strings.Contains(raw, "},{"):
		repaired = "[" + raw + "]"
	case strings.HasPrefix(raw, "{"):
		repaired = "[" + raw + "]"
	default:
		return nil, fmt.Errorf("callbacks field is not a JSON array or object")
	}

	var callbacks []Callback
	if err := json.Unmarshal([]byte(repaired), &callbacks); err != nil {
		return nil, fmt.Errorf("cannot parse callbacks: %w", err)
	}

	return callbacks, nil
}
