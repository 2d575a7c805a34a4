package checkout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintSortsAndDeduplicates(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	got := Fingerprint([]uuid.UUID{a, b, a, uuid.Nil})
	assert.Equal(t, []string{b.String(), a.String()}, got)
}

func TestFingerprintKeyIgnoresSubmissionOrder(t *testing.T) {
	buyer := uuid.New()
	a, b := uuid.New(), uuid.New()
	first := FingerprintKey(buyer, Fingerprint([]uuid.UUID{a, b}))
	second := FingerprintKey(buyer, Fingerprint([]uuid.UUID{b, a}))
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, FingerprintKey(uuid.New(), Fingerprint([]uuid.UUID{a, b})), "key must depend on the buyer")
	assert.Len(t, first, 64, "expected hex sha256")
}

func TestSameSet(t *testing.T) {
	assert.True(t, SameSet([]string{"b", "a"}, []string{"a", "b"}))
	assert.False(t, SameSet([]string{"a"}, []string{"a", "b"}), "subset must not match")
	assert.False(t, SameSet([]string{"a", "c"}, []string{"a", "b"}), "different members must not match")
}
