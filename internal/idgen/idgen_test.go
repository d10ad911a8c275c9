package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProducesValidIDs(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := New()
		assert.True(t, IsValid(id), "generated id %q should be valid", id)
		assert.True(t, strings.HasPrefix(id, "trk_"))
		assert.Len(t, id, len("trk_")+12)
	}
}

func TestNewIsNotRepeating(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		assert.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		id    string
		valid bool
	}{
		{"trk_9f3a2b8c1d2e", true},
		{"trk_9f3a2b8c", true},           // 8 chars, minimum
		{"trk_abcdefgh12345678", true},   // 16 chars, maximum
		{"trk_abc", false},               // too short
		{"trk_abcdefgh123456789", false}, // too long
		{"trk_ABCDEF123456", false},      // uppercase not allowed
		{"trk_9f3a2b8c1d2!", false},      // bad character
		{"tk_9f3a2b8c1d2e", false},       // wrong prefix
		{"", false},
		{"trk_", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.valid, IsValid(tc.id), "id=%q", tc.id)
	}
}
