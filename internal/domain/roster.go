package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// RosterSnapshot is an immutable view of the people list at fetch time.
type RosterSnapshot struct {
	Entries []Person `json:"entries"`
	Version string   `json:"version"`
}

// NewRosterSnapshot copies people and stamps the snapshot with a content hash.
func NewRosterSnapshot(people []Person) RosterSnapshot {
	entries := make([]Person, len(people))
	copy(entries, people)
	return RosterSnapshot{Entries: entries, Version: RosterVersion(entries)}
}

// RosterVersion hashes the quiz-relevant fields of each entry in order.
// Two rosters with the same people in the same order share a version.
func RosterVersion(people []Person) string {
	h := sha256.New()
	for _, p := range people {
		writeField(h, p.ID)
		writeField(h, p.Name)
		writeOptional(h, p.Relation)
		writeOptional(h, p.PhotoURI)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	_, _ = w.Write([]byte(s))
	_, _ = w.Write([]byte{0})
}

func writeOptional(w io.Writer, s *string) {
	if s == nil {
		_, _ = w.Write([]byte{1})
		return
	}
	_, _ = w.Write([]byte{2})
	writeField(w, *s)
}
