package domain

import "time"

// CallState is a step of the simulated call walk after a proxy is assigned.
type CallState string

const (
	CallStateRinging  CallState = "RINGING"
	CallStateAnswered CallState = "ANSWERED"
	CallStateHangup   CallState = "HANGUP"
)

type CallOutcome string

const (
	OutcomeSuccess CallOutcome = "SUCCESS"
	OutcomeFailed  CallOutcome = "FAILED"
)

// CallAllocatedEvent is published once a proxy number is bound to a call.
type CallAllocatedEvent struct {
	CallID      string    `json:"call_id"`
	ProxyNumber string    `json:"proxy_number"`
	Subject     string    `json:"subject"`
	ExpiresAt   time.Time `json:"expires_at"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CallProgressEvent reports one step of the call walk.
type CallProgressEvent struct {
	CallID      string      `json:"call_id"`
	ProxyNumber string      `json:"proxy_number"`
	State       CallState   `json:"state"`
	Outcome     CallOutcome `json:"outcome"`
	Reason      string      `json:"reason,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
