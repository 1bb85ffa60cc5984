// Package app contains the risk ledger: per-user counters, circuit
// breaker trips and the pre-trade check.
package app

import (
	"context"

	"github.com/fd1az/arbguard/business/risk/domain"
)

// Store persists tracking rows and breaker events. Update runs fn in one
// transaction; nothing fn wrote is visible unless it returns nil.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	Events(ctx context.Context, userID string) ([]domain.Event, error)
}

// Tx is the transactional view handed to Store.Update.
type Tx interface {
	// Tracking returns nil without error when the user has no row yet.
	Tracking(ctx context.Context, userID string) (*domain.Tracking, error)
	SaveTracking(ctx context.Context, t *domain.Tracking) error
	// UnresolvedEvent returns nil without error when none matches.
	UnresolvedEvent(ctx context.Context, userID, reason string) (*domain.Event, error)
	CountUnresolved(ctx context.Context, userID string) (int, error)
	Event(ctx context.Context, userID, id string) (*domain.Event, error)
	InsertEvent(ctx context.Context, e *domain.Event) error
	ResolveEvent(ctx context.Context, e *domain.Event) error
}
