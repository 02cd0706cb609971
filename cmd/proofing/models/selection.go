package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Marker is a positional comment attached to an item
type Marker struct {
	// Position as fractions of the image dimensions, 0..1
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Comment text, sanitized before storage
	Comment string `json:"comment"`
}

// ApprovalField is a free-form answer collected with an approval
type ApprovalField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Selection is one client's record of chosen items and annotations
// Maps to: client_selection table
type Selection struct {
	// Owning collection
	CollectionID uuid.UUID `db:"collection_id" json:"collection_id"`

	// Owning client; empty for single-recipient collections
	Ident string `db:"ident" json:"ident"`

	// Selected item IDs, canonical integer strings
	Selected []string `db:"selected" json:"selection"`

	// Markers keyed by item ID
	Markers map[string][]Marker `db:"markers" json:"markers,omitempty"`

	// Star ratings keyed by item ID, 0-5
	Stars map[string]int `db:"stars" json:"stars,omitempty"`

	// Approval-field answers keyed by field key
	ApprovalFields map[string]ApprovalField `db:"approval_fields" json:"approval_fields,omitempty"`

	// Last save time
	Time time.Time `db:"saved_at" json:"time"`
}

// HasSelection reports whether the client selected anything
func (s *Selection) HasSelection() bool {
	return s != nil && len(s.Selected) > 0
}

// ClampStars normalizes a star rating into the 0-5 range
func ClampStars(n int) int {
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

// SanitizeText normalizes untrusted free-text input: strips control
// characters, collapses inner whitespace runs and trims the result.
// Newlines survive so multi-line approval messages keep their shape.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
