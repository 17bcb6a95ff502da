package models

import (
	"github.com/cockroachdb/errors"
)

// Base errors, related to default API status codes
var (
	// BadParameterError is rendered with the http status code 400
	BadParameterError = errors.New("bad parameter")

	// ForbiddenError is rendered with the http status code 403
	ForbiddenError = errors.New("forbidden")

	// NotFoundError is rendered with the http status code 404
	NotFoundError = errors.New("not found")

	// ConflictError is rendered with the http status code 409
	ConflictError = errors.New("duplicate value")

	// ServiceUnavailableError is rendered with the http status code 503
	ServiceUnavailableError = errors.New("dependency unavailable")
)

// Session lifecycle errors
var (
	ErrNoActiveSession       = errors.Wrap(NotFoundError, "no active session for plate")
	ErrSessionAlreadyClosed  = errors.Wrap(ConflictError, "session is already closed")
	ErrLotAtCapacity         = errors.Wrap(ConflictError, "lot is at capacity")
	ErrDuplicateSession      = errors.Wrap(ConflictError, "plate already has an active session")
	ErrUnknownLot            = errors.Wrap(NotFoundError, "unknown lot")
	ErrIdempotencyInProgress = errors.Wrap(ConflictError, "a request with this idempotency key is in flight")
	ErrIdempotencyMismatch   = errors.Wrap(ConflictError, "idempotency key was used with a different request body")
)

// Settlement errors
var (
	ErrUnknownRail        = errors.Wrap(BadParameterError, "unknown payment rail")
	ErrNoVerifierForRail  = errors.Wrap(BadParameterError, "no settlement verifier for rail")
	ErrReceiverMismatch   = errors.Wrap(BadParameterError, "receiver mismatch")
	ErrAmountMismatch     = errors.Wrap(BadParameterError, "amount mismatch")
	ErrSettlementNotFinal = errors.Wrap(BadParameterError, "transaction is not final or did not succeed")
)

// DB related errors
var ErrIgnoreRollBackError = errors.New("ignore rollback error")

// EnforcementError carries the machine-readable reason of an enforcement
// denial up to the API layer. It wraps ForbiddenError so it renders as 403.
type EnforcementError struct {
	Reason PolicyReason
}

func (e EnforcementError) Error() string {
	return "settlement enforcement failed: " + string(e.Reason)
}

func (e EnforcementError) Unwrap() error {
	return ForbiddenError
}

// PolicyDeniedError is returned when a payment decision terminates in DENY
// or REQUIRE_APPROVAL; the reason is the decision's first reason code.
type PolicyDeniedError struct {
	Action DecisionAction
	Reason PolicyReason
}

func (e PolicyDeniedError) Error() string {
	return "payment denied by policy: " + string(e.Reason)
}

func (e PolicyDeniedError) Unwrap() error {
	return ForbiddenError
}
