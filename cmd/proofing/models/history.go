package models

import "github.com/google/uuid"

// EventKind identifies a collection lifecycle event
type EventKind string

const (
	EventPublished               EventKind = "published"
	EventDeliveryPublished       EventKind = "delivery-published"
	EventSentToNewClient         EventKind = "sent-to-new-client"
	EventNewClientRegistered     EventKind = "new-client-registered"
	EventRemovedClient           EventKind = "removed-client"
	EventApproved                EventKind = "approved"
	EventApprovedByClient        EventKind = "approved-by-client"
	EventReopened                EventKind = "reopened"
	EventReopenedForClient       EventKind = "reopened-for-client"
	EventReopenedToDraft         EventKind = "reopened-to-draft"
	EventReopenedToDeliveryDraft EventKind = "reopened-to-delivery-draft"
	EventExpired                 EventKind = "expired"
	EventClosedManually          EventKind = "closed-manually"
	EventDelivered               EventKind = "delivered"
	EventImagesUpdated           EventKind = "images-updated"

	// EventLastModified is the sentinel returned for an empty log
	EventLastModified EventKind = "last-modified"
)

// HistoryEvent is an immutable, timestamped lifecycle record.
// The log is ordered by the unix-second Time key; collisions are
// resolved before insert by bumping the key forward.
type HistoryEvent struct {
	// Owning collection
	CollectionID uuid.UUID `db:"collection_id" json:"collection_id"`

	// Unix-second key, unique within the collection's log
	Time int64 `db:"event_time" json:"time"`

	// Event kind
	Event EventKind `db:"event" json:"event"`

	// Optional payload, e.g. the approving client's combined name/email
	Data string `db:"data" json:"data,omitempty"`

	// Optional additional metadata, e.g. the approval message
	Meta []string `db:"meta" json:"meta,omitempty"`
}

// PrettyEvent returns a display name for a collection event
func PrettyEvent(event EventKind) string {
	switch event {
	case EventSentToNewClient:
		return "Sent to additional client"
	case EventPublished:
		return "Published"
	case EventNewClientRegistered:
		return "New client registered"
	case EventRemovedClient:
		return "Removed client"
	case EventApproved:
		return "Approved"
	case EventApprovedByClient:
		return "Approved by client"
	case EventReopenedForClient:
		return "Reopened for client"
	case EventReopened:
		return "Reopened"
	case EventReopenedToDraft:
		return "Reverted to draft"
	case EventReopenedToDeliveryDraft:
		return "Reverted to delivery draft"
	case EventExpired:
		return "Expired"
	case EventClosedManually:
		return "Closed manually"
	case EventDelivered:
		return "Delivered"
	case EventDeliveryPublished:
		return "Delivery published"
	case EventLastModified:
		return "Last modified"
	case EventImagesUpdated:
		return "Images updated"
	}
	return string(event)
}
