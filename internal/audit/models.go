package audit

import (
	"encoding/json"
	"time"
)

// EventType names every structured event emitted by the platform core.
// External audit and indexing systems key off these names.
type EventType string

const (
	EventProducerRegistered  EventType = "ProducerRegistered"
	EventProducerVerified    EventType = "ProducerVerified"
	EventProducerDeactivated EventType = "ProducerDeactivated"
	EventProducerReactivated EventType = "ProducerReactivated"
	EventProductionSubmitted EventType = "ProductionSubmitted"
	EventProductionVerified  EventType = "ProductionVerified"
	EventVerifierAdded       EventType = "VerifierAdded"
	EventVerifierRemoved     EventType = "VerifierRemoved"
	EventCreditIssued        EventType = "CreditIssued"
	EventCreditTransferred   EventType = "CreditTransferred"
	EventCreditRetired       EventType = "CreditRetired"
	EventLedgerPaused        EventType = "LedgerPaused"
	EventLedgerUnpaused      EventType = "LedgerUnpaused"
	EventListingCreated      EventType = "ListingCreated"
	EventCreditsPurchased    EventType = "CreditsPurchased"
	EventListingPriceUpdated EventType = "ListingPriceUpdated"
	EventListingCancelled    EventType = "ListingCancelled"
)

// Event is an append-only audit record mirroring a domain event.
type Event struct {
	ID         int64           `json:"id" db:"id"`
	EventType  EventType       `json:"event_type" db:"event_type"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
}
