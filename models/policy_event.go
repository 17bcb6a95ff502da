package models

import (
	"encoding/json"
	"time"
)

type PolicyEventType string

const (
	PolicyEventEntryGrantCreated      PolicyEventType = "entryGrantCreated"
	PolicyEventPaymentDecisionCreated PolicyEventType = "paymentDecisionCreated"
	PolicyEventSettlementVerified     PolicyEventType = "settlementVerified"
	PolicyEventEnforcementFailed      PolicyEventType = "enforcementFailed"
	PolicyEventRiskSignal             PolicyEventType = "riskSignal"
)

// PolicyEvent is the append-only audit record of every policy state
// transition. Write-once.
type PolicyEvent struct {
	Id         string
	EventType  PolicyEventType
	SessionId  string
	DecisionId *string
	TxHash     *string
	Payload    json.RawMessage
	CreatedAt  time.Time
}
