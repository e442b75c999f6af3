package domain

import (
	"fmt"
	"regexp"
	"time"
)

// phonePattern is the canonical Tunisian E.164 form: +216 and eight digits.
var phonePattern = regexp.MustCompile(`^\+216\d{8}$`)

// ValidationError is a caller-fixable request shape problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type MaskRequest struct {
	CallerReal string
	CalleeReal string
}

// Validate rejects identical numbers before looking at format, so a
// self-masking request is refused whatever it contains.
func (r MaskRequest) Validate() error {
	if r.CallerReal == r.CalleeReal {
		return &ValidationError{Field: "callee_real", Reason: "caller and callee numbers must differ"}
	}
	if !phonePattern.MatchString(r.CallerReal) {
		return &ValidationError{Field: "caller_real", Reason: "invalid number, expected format +216XXXXXXXX"}
	}
	if !phonePattern.MatchString(r.CalleeReal) {
		return &ValidationError{Field: "callee_real", Reason: "invalid number, expected format +216XXXXXXXX"}
	}
	return nil
}

// MaskedCall is what the caller gets back. Real numbers are never part of it.
type MaskedCall struct {
	CallID      string
	ProxyNumber string
	ExpiresAt   time.Time
}
