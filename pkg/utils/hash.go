package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// HashString generates a SHA1 hash of a string
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// IncidentID derives a stable incident ID from its source and the item's
// link or GUID, so re-polling a feed upserts instead of duplicating.
func IncidentID(source, key string) string {
	return HashString(strings.ToLower(strings.TrimSpace(source)) + "|" + strings.TrimSpace(key))
}
