package domain

import (
	"time"
)

// Status is the lifecycle state of a pooled proxy number.
type Status string

const (
	StatusAvailable Status = "available"
	StatusAssigned  Status = "assigned"
	StatusExpired   Status = "expired"
)

// Assignment is the live binding of a proxy number to one call.
// EncryptedMapping is the sealed caller/callee pair, never plaintext.
type Assignment struct {
	CallID           string
	EncryptedMapping string
	AssignedAt       time.Time
	ExpiresAt        time.Time
}

// ProxyNumber is one row of the pool. Assignment is nil unless Status is assigned.
type ProxyNumber struct {
	ID         int64
	Number     string
	Status     Status
	Assignment *Assignment
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CallSession is the caller-facing view of an assignment.
type CallSession struct {
	CallID      string
	ProxyNumber string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// PoolStats is a point-in-time count of the pool.
type PoolStats struct {
	Total     int
	Available int
}

// UsagePercent is the share of numbers not available, 0 for an empty pool.
func (s PoolStats) UsagePercent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Total-s.Available) / float64(s.Total) * 100
}
