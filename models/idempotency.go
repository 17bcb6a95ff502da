package models

import "encoding/json"

type IdempotencyState string

const (
	// IdempotencyStarted: the key is new, the caller owns the execution.
	IdempotencyStarted IdempotencyState = "started"
	// IdempotencyReplay: the key completed before, the stored response must
	// be replayed byte-identical.
	IdempotencyReplay IdempotencyState = "replay"
	// IdempotencyInProgress: another execution holds the key.
	IdempotencyInProgress IdempotencyState = "in_progress"
	// IdempotencyConflict: the key was used with a different request body.
	IdempotencyConflict IdempotencyState = "conflict"
)

// IdempotencyCheck is the outcome of claiming an idempotency key.
type IdempotencyCheck struct {
	State          IdempotencyState
	StoredStatus   int
	StoredResponse json.RawMessage
}
