// Package events defines the domain events emitted by the ledger and billing engines.
// Events are written to the transactional outbox inside the same transaction as the
// state change; delivery to notification consumers happens asynchronously.
package events

import (
	"context"

	"clinicledger/internal/core/id"
)

// Aggregate types
const (
	AggregateInventoryItem = "InventoryItem"
	AggregateInvoice       = "Invoice"
)

// Event types
const (
	MovementRecorded  = "inventory.movement_recorded"
	StockBelowMinimum = "inventory.stock_below_minimum"
	InvoiceCreated    = "billing.invoice_created"
	InvoiceDeleted    = "billing.invoice_deleted"
)

// Event is a domain event to be published via the outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events. Publish MUST be called inside a transaction.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
