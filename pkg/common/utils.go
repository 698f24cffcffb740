package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewCutUUIDString returns uuid string that cut `-`.
func NewCutUUIDString() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ShortHex shortens long hex strings such as addresses and hashes for logs: 0x1234...abcd.
func ShortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
