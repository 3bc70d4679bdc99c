package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"maps"
	"slices"
)

// Fingerprint hashes exactly the fields that ExactMatch compares. Equal
// events always share a fingerprint; the converse is confirmed by ExactMatch.
func Fingerprint(e *HighLevelEvent) string {
	h := sha256.New()
	writeField(h, e.EvidenceSource)
	writeField(h, e.Type)
	writeField(h, e.Description)
	writeField(h, e.Category)

	fmt.Fprintf(h, "files:%d;", len(e.Files))
	for _, f := range e.Files {
		writeField(h, f)
	}

	keys := slices.Sorted(maps.Keys(e.Keys))
	fmt.Fprintf(h, "keys:%d;", len(keys))
	for _, k := range keys {
		writeField(h, k)
		writeField(h, e.Keys[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes s so that field boundaries cannot be forged by content.
func writeField(h hash.Hash, s string) {
	fmt.Fprintf(h, "%d:%s;", len(s), s)
}

// ExactMatch reports whether two events describe the same thing. Id,
// timestamps, reasoning, supporting context and merged ids are not compared:
// they legitimately differ between duplicate detections.
func ExactMatch(a, b *HighLevelEvent) bool {
	return a.EvidenceSource == b.EvidenceSource &&
		a.Type == b.Type &&
		a.Description == b.Description &&
		a.Category == b.Category &&
		slices.Equal(a.Files, b.Files) &&
		maps.Equal(a.Keys, b.Keys)
}
