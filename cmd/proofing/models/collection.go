package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CollectionStatus represents the lifecycle status of a collection
type CollectionStatus string

const (
	StatusDraft          CollectionStatus = "draft"
	StatusDeliveryDraft  CollectionStatus = "delivery-draft"
	StatusSent           CollectionStatus = "sent"
	StatusApproved       CollectionStatus = "approved"
	StatusExpired        CollectionStatus = "expired"
	StatusClosedManually CollectionStatus = "closed-manually"
	StatusDelivered      CollectionStatus = "delivered"
)

// DeliveryOption selects how a delivery collection hands over files
type DeliveryOption string

const (
	DeliveryUpload DeliveryOption = "upload"
	DeliveryLink   DeliveryOption = "link"
)

// Collection represents a shareable gallery workflow unit
// Maps to: collection table
type Collection struct {
	// Unique collection ID
	ID uuid.UUID `db:"id" json:"id"`

	// Collection title; publishing requires a non-empty one
	Title string `db:"title" json:"title"`

	// Lifecycle status
	Status CollectionStatus `db:"status" json:"status"`

	// Proofing item IDs, canonical integer strings
	// Persisted comma-joined in the item_ids column
	ItemIDs []string `db:"item_ids" json:"item_ids"`

	// Delivery item IDs, only used for delivery collections
	DeliveryItemIDs []string `db:"delivery_item_ids" json:"delivery_item_ids,omitempty"`

	// Delivery handover option
	DeliveryOption DeliveryOption `db:"delivery_option" json:"delivery_option,omitempty"`

	// When a sent collection expires; zero means never
	ExpiresAt time.Time `db:"expires_at" json:"expires_at,omitempty"`

	// Audit fields
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsLive reports whether clients may interact with the collection
func (c *Collection) IsLive() bool {
	return c.Status == StatusSent || c.Status == StatusDelivered
}

// IsClosed reports whether the collection reached a terminal proofing state
func (c *Collection) IsClosed() bool {
	switch c.Status {
	case StatusApproved, StatusExpired, StatusClosedManually:
		return true
	}
	return false
}

// ActiveItemIDs returns the item set clients see for the current status
func (c *Collection) ActiveItemIDs() []string {
	if c.Status == StatusDeliveryDraft || c.Status == StatusDelivered {
		return c.DeliveryItemIDs
	}
	return c.ItemIDs
}

// CanonicalItemID coerces an untrusted item ID to its canonical
// integer-string form. Non-numeric input canonicalizes to "0".
func CanonicalItemID(raw string) string {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "0"
	}
	return strconv.Itoa(n)
}

// CanonicalItemIDs coerces and dedupes a list of untrusted item IDs,
// preserving first-seen order and dropping the "0" sentinel.
func CanonicalItemIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		id := CanonicalItemID(r)
		if id == "0" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
