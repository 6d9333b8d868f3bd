package ports

import (
	"context"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// EventRepository is the append-only event store.
type EventRepository interface {
	// Append stores e and returns false without error when an event with the
	// same natural key already exists.
	Append(ctx context.Context, e *domain.Event) (bool, error)
	// Page returns up to limit matching events with Seq greater than afterSeq,
	// in Seq order.
	Page(ctx context.Context, q domain.EventQuery, afterSeq int64, limit int) (domain.EventPage, error)
}
