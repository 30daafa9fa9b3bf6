// Package refcode generates shareable affiliate referral codes.
package refcode

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// DefaultBytes yields 12 hex characters, a 48-bit code space.
const DefaultBytes = 6

// Generate returns an upper-case hex code built from n random bytes.
func Generate(n int) (string, error) {
	if n <= 0 {
		n = DefaultBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Normalize trims and upper-cases a code taken from user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code looks like something Generate could have produced.
// It does not check existence.
func Valid(code string) bool {
	if code == "" || len(code) > 20 || len(code)%2 != 0 {
		return false
	}
	for _, r := range code {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}
