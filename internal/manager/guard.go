package manager

import (
	"context"
	"sync"

	"github.com/tokenmart/marketd/internal/domain"
)

type guardKey struct{}

// Guard is the shared mutual-exclusion marker engaged for the duration of
// every mutating entry point. A top-level call acquires the lock and marks
// its context; collaborator calls made during the operation carry the marked
// context, so any attempt to re-enter a guarded entry point from inside an
// asset- or token-transfer hook fails immediately with
// domain.ErrReentrancyBlocked instead of deadlocking. Independent top-level
// calls serialize on the mutex, which gives every (collection, tokenID) key a
// strictly serial history.
type Guard struct {
	mu sync.Mutex
}

// NewGuard creates the shared guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Enter engages the guard. It returns the context to thread through the rest
// of the operation and a release function to defer. The error is
// domain.ErrReentrancyBlocked when ctx already belongs to an in-flight
// guarded operation.
func (g *Guard) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(guardKey{}) != nil {
		return nil, nil, domain.ErrReentrancyBlocked
	}
	g.mu.Lock()
	return context.WithValue(ctx, guardKey{}, struct{}{}), g.mu.Unlock, nil
}
