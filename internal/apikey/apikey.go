// Package apikey generates and checks the textual format of API key secrets.
//
// A key is the prefix "fk_" followed by 32 characters drawn from the URL-safe
// alphabet A-Z a-z 0-9 _ -. Format checks never touch storage.
package apikey

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	// Prefix starts every key secret.
	Prefix = "fk_"
	// TokenLength is the number of random characters after the prefix.
	TokenLength = 32
	// Length is the total length of a key secret.
	Length = len(Prefix) + TokenLength

	// MaskedPreview is shown in place of the secret when listing keys.
	MaskedPreview = "fk_••••••••••••"

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

// Generate returns a new random key secret.
func Generate() (string, error) {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(Length)
	sb.WriteString(Prefix)
	for _, b := range buf {
		// 64 symbols, so the low 6 bits index the alphabet without bias.
		sb.WriteByte(alphabet[b&63])
	}
	return sb.String(), nil
}

// ValidFormat reports whether s is shaped like a key secret.
func ValidFormat(s string) bool {
	if len(s) != Length || !strings.HasPrefix(s, Prefix) {
		return false
	}
	for i := len(Prefix); i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(b byte) bool {
	return (b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9') ||
		b == '_' || b == '-'
}
