package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches raw against allowed after trimming surrounding space. label names
// the enum in the error.
func parse[T ~string](raw string, allowed []T, label string) (T, error) {
	v := T(strings.TrimSpace(raw))
	if slices.Contains(allowed, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", label, raw)
}
