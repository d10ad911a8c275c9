package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Opaque tracking IDs are externally safe: unpredictable, non-enumerable
// and carry no sequential meaning. Format: trk_[a-z0-9]{12}.
const (
	prefix   = "trk_"
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength = 12
)

// New generates a new opaque tracking ID using a cryptographically
// secure random source. With 36^12 combinations collision probability
// is negligible at billions of issued IDs.
func New() string {
	var sb strings.Builder
	sb.Grow(len(prefix) + idLength)
	sb.WriteString(prefix)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < idLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the platform's entropy source
			// is broken, at which point nothing here is safe to serve.
			panic(fmt.Sprintf("idgen: random source failure: %v", err))
		}
		sb.WriteByte(alphabet[n.Int64()])
	}

	return sb.String()
}

// IsValid checks the structural shape of an ID (prefix plus 8-16
// characters of the alphabet). It says nothing about existence.
func IsValid(id string) bool {
	if !strings.HasPrefix(id, prefix) {
		return false
	}

	suffix := id[len(prefix):]
	if len(suffix) < 8 || len(suffix) > 16 {
		return false
	}

	for i := 0; i < len(suffix); i++ {
		if !strings.ContainsRune(alphabet, rune(suffix[i])) {
			return false
		}
	}

	return true
}
