package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const maxFileNameLen = 80

var errInvalidFileName = errors.New("invalid file name")

// HashUserKey returns a stable, path-safe prefix for a user's stored photos.
func HashUserKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// SanitizeFileName keeps letters, digits, dot, dash and underscore from a client file name and
// replaces everything else with '_'. Runs of dots collapse to one, so the result never holds
// "..". Only empty names are rejected.
func SanitizeFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errInvalidFileName
	}
	var b strings.Builder
	var prev rune
	for _, r := range name {
		switch {
		case r == '.':
			if prev == '.' {
				continue
			}
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		prev = r
		if b.Len() >= maxFileNameLen {
			break
		}
	}
	return b.String(), nil
}
