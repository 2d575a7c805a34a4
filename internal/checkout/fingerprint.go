package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Fingerprint returns the sorted, de-duplicated cart line ids.
func Fingerprint(cartItemIDs []uuid.UUID) []string {
	seen := make(map[string]struct{}, len(cartItemIDs))
	out := make([]string, 0, len(cartItemIDs))
	for _, id := range cartItemIDs {
		if id == uuid.Nil {
			continue
		}
		key := id.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// FingerprintKey hashes the buyer with the sorted fingerprint into a fixed-size lookup key.
func FingerprintKey(buyerID uuid.UUID, fingerprint []string) string {
	sum := sha256.Sum256([]byte(buyerID.String() + ":" + strings.Join(fingerprint, ",")))
	return hex.EncodeToString(sum[:])
}

// SameSet reports whether two fingerprints hold exactly the same ids.
func SameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := append([]string(nil), a...)
	right := append([]string(nil), b...)
	sort.Strings(left)
	sort.Strings(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}
