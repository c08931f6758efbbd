package realtime

import (
	"time"

	"github.com/davemejos/mediasync/pkg/models"
)

const (
	EventMediaCreated = "media.created"
	EventMediaUpdated = "media.updated"
	EventMediaDeleted = "media.deleted"
	EventMediaSynced  = "media.synced"
	EventMediaError   = "media.error"
)

// Event is one catalog change pushed to subscribed clients. Delivery is
// at-least-once; the asset's id and updated_at let clients apply
// duplicates idempotently.
type Event struct {
	Type          string             `json:"type"`
	Asset         *models.MediaAsset `json:"asset,omitempty"`
	CorrelationID *string            `json:"correlation_id,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Broadcaster is the publish side of the hub. Services that mutate the
// catalog depend on this rather than on the hub itself.
type Broadcaster interface {
	Broadcast(event Event)
}

// NewEvent builds an event for the given asset. The correlation id is
// included while it's still set so optimistic uploads can be matched by
// the client that submitted them.
func NewEvent(eventType string, asset *models.MediaAsset) Event {
	e := Event{
		Type:      eventType,
		Asset:     asset,
		Timestamp: time.Now(),
	}
	if asset != nil {
		e.CorrelationID = asset.CorrelationID
	}
	return e
}
