package core

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NormalizeText canonicalizes memory text for identity comparison:
// lowercased, whitespace collapsed to single spaces, leading and trailing
// space removed. The two backends store the same logical memory with
// different formatting, so dedup must compare normalized text.
func NormalizeText(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// TextHash returns the dedup hash of a memory text: xxhash over the
// normalized form.
func TextHash(s string) uint64 {
	return xxhash.Sum64String(NormalizeText(s))
}

// DedupKey is the identity of a logical memory across backends.
type DedupKey struct {
	OwnerUserID string
	TextHash    uint64
}

// Identity returns the dedup key for a memory item.
func (m MemoryItem) Identity() DedupKey {
	return DedupKey{OwnerUserID: m.OwnerUserID, TextHash: TextHash(m.Text)}
}
