package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientStatus represents the status of a single recipient
type ClientStatus string

const (
	ClientSent     ClientStatus = "sent"
	ClientApproved ClientStatus = "approved"
	ClientFailed   ClientStatus = "failed"
)

// Client represents a collection recipient, identified by an opaque token
// Maps to: collection_client table
type Client struct {
	// Opaque identification token, unique within the collection
	Ident string `db:"ident" json:"ident"`

	// Owning collection
	CollectionID uuid.UUID `db:"collection_id" json:"collection_id"`

	// Display name; at least one of name/email is required
	Name string `db:"name" json:"name"`

	// Email address, optional
	Email string `db:"email" json:"email,omitempty"`

	// Recipient status; only ever advances sent -> approved/failed
	Status ClientStatus `db:"status" json:"status"`

	// Time of the last status change
	Time time.Time `db:"status_time" json:"time"`

	// Additional free-form fields supplied on registration
	Extra map[string]string `db:"extra" json:"extra,omitempty"`
}

// CanEdit reports whether this client may still change their selection.
// "open" and "publish" are accepted for records imported from older data.
func (c *Client) CanEdit() bool {
	switch string(c.Status) {
	case "open", "sent", "publish":
		return true
	}
	return false
}

// NewIdent generates a fresh opaque client token
func NewIdent() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:10]
}

// CombineNameEmail formats a client's name and email for display,
// e.g. "Jo Doe (jo@example.com)", "Jo Doe" or "jo@example.com".
func CombineNameEmail(name, email string) string {
	switch {
	case name != "" && email != "":
		return name + " (" + email + ")"
	case name != "":
		return name
	default:
		return email
	}
}

// ClientInitials returns the first two characters of a name, uppercased
func ClientInitials(name string) string {
	r := []rune(name)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}
