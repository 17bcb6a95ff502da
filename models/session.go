package models

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session is a parked vehicle's lifecycle record. It transitions
// active -> completed exactly once; closing is the store's conditional
// update on status.
type Session struct {
	Id             string
	Plate          string
	LotId          string
	Status         SessionStatus
	EntryTime      time.Time
	ExitTime       *time.Time
	FeeAmountMinor *string
	FeeCurrency    *string
	PolicyGrantId  *string
	PolicyHash     *string
}

// SessionClose carries the fields written when a session is closed.
type SessionClose struct {
	ExitTime       time.Time
	FeeAmountMinor string
	FeeCurrency    string
	DecisionId     string
	TxHash         string
	Rail           Rail
}
