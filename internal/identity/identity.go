package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hashPrefixLen is the number of hex characters kept from the SHA-256 digest.
// 12 hex chars is 48 bits, plenty at the scale of a few thousand incidents
// per source.
const hashPrefixLen = 12

// GenerateID derives a deterministic incident ID from a feed slug and the
// normalized item text. The same slug plus the same normalized title and
// content always yields the same ID, across runs and process restarts, so
// re-polling an unchanged upstream produces the same ID set and the upsert
// is a no-op.
func GenerateID(slug, title, content string) string {
	key := slug + ":" + normalize(title) + ":" + normalize(content)
	sum := sha256.Sum256([]byte(key))
	return slug + "_" + hex.EncodeToString(sum[:])[:hashPrefixLen]
}

// normalize trims, lower-cases and collapses internal whitespace so that
// cosmetic upstream edits (re-wrapped lines, double spaces) do not change
// the identity of an item.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
