// Package uuidv7 generates monotonic, time-ordered identifiers per spec.md
// §4.1: a 48-bit unix-millisecond timestamp, the version-7 nibble, and
// random tail bits, formatted canonical-hyphenated with optional
// "{tag}_" prefixing.
package uuidv7

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotV7 is returned by ExtractTimestamp when the string is not
// a version-7 UUID (after prefix stripping).
var ErrNotV7 = errors.New("uuidv7: not a version 7 uuid")

// New generates a new UUIDv7 string, canonical-hyphenated.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the global random source is broken;
		// fall back to a random v4 from uuid.New, which itself panics
		// if the random source cannot be read.
		return uuid.New().String()
	}
	return id.String()
}

// NewPrefixed generates a UUIDv7 and prepends "{tag}_" to it.
func NewPrefixed(tag string) string {
	return tag + "_" + New()
}

// stripPrefix removes a leading "{tag}_" component, if present, returning
// the bare UUID string.
func stripPrefix(s string) string {
	if idx := strings.LastIndex(s, "_"); idx >= 0 {
		candidate := s[idx+1:]
		if _, err := uuid.Parse(candidate); err == nil {
			return candidate
		}
	}
	return s
}

// IsV7 reports whether s (optionally "{tag}_"-prefixed) is a syntactically
// valid version-7 UUID.
func IsV7(s string) bool {
	bare := stripPrefix(s)
	id, err := uuid.Parse(bare)
	if err != nil {
		return false
	}
	return id.Version() == 7
}

// ExtractTimestamp returns the millisecond unix timestamp embedded in a
// UUIDv7 string (optionally "{tag}_"-prefixed).
func ExtractTimestamp(s string) (time.Time, error) {
	bare := stripPrefix(s)
	id, err := uuid.Parse(bare)
	if err != nil {
		return time.Time{}, err
	}
	if id.Version() != 7 {
		return time.Time{}, ErrNotV7
	}
	b := id[:]
	ms := int64(b[0])<<40 | int64(b[1])<<32 | int64(b[2])<<24 | int64(b[3])<<16 | int64(b[4])<<8 | int64(b[5])
	return time.UnixMilli(ms).UTC(), nil
}
