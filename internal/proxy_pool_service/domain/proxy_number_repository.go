package domain

import (
	"context"
	"time"
)

// ProxyNumberRepository is the persistence contract of the pool. Every state
// change is a single conditional statement, so concurrent callers never
// observe or produce a double assignment.
type ProxyNumberRepository interface {
	// ClaimRandomAvailable picks a uniformly random available row, skipping
	// rows locked by concurrent claims, and assigns it. ErrNoCandidate when none is free.
	ClaimRandomAvailable(ctx context.Context, a Assignment) (*ProxyNumber, error)
	// ClaimNumber assigns number only if it is still available. ErrAlreadyClaimed otherwise.
	ClaimNumber(ctx context.Context, number string, a Assignment) (*ProxyNumber, error)
	// Insert adds an available number. It reports false if the number already exists.
	Insert(ctx context.Context, number string) (bool, error)
	// Release makes number available again and purges its assignment.
	// It reports whether a row changed.
	Release(ctx context.Context, number string) (bool, error)
	// ReapExpired releases every assignment with expires_at <= now and returns the numbers.
	ReapExpired(ctx context.Context, now time.Time) ([]string, error)
	Counts(ctx context.Context) (PoolStats, error)
	GetByNumber(ctx context.Context, number string) (*ProxyNumber, error)
}
