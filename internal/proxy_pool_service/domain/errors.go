package domain

import "errors"

var (
	// ErrPoolExhausted means no number could be claimed or synthesized within the attempt bounds.
	ErrPoolExhausted = errors.New("proxy pool exhausted")
	// ErrNoCandidate means the pool currently has no available row.
	ErrNoCandidate = errors.New("no available proxy number")
	// ErrAlreadyClaimed means another allocation won the conditional update.
	ErrAlreadyClaimed = errors.New("proxy number already claimed")

	ErrAssignmentNotFound = errors.New("no live assignment for proxy number")
	ErrNumberNotFound     = errors.New("proxy number not found")
)
