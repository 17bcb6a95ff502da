package models

import "time"

// SettlementResult is an observed real-world payment, produced by a
// rail-specific verifier. Amounts are the delivered amount in atomic units,
// not the requested amount (partial-payment-capable ledgers differ).
type SettlementResult struct {
	Rail         Rail
	Asset        *Asset
	AmountAtomic string
	// ObservedAmountAtomic carries the on-chain amount when it differs from
	// AmountAtomic: the watcher matches transfers within a tolerance band and
	// settles at the registered amount, keeping the observed one for audit.
	ObservedAmountAtomic string
	Destination          string
	QuoteId              string
	TxHash               string
	Payer                string
	// ExpectedGrantId and ExpectedPolicyHash, when set by the caller, must
	// match the stored decision's bindings. They defend against a stale or
	// replayed decision being confused with the current one.
	ExpectedGrantId    string
	ExpectedPolicyHash string
}

// EnforcementResult is the verdict of matching a settlement to a decision.
type EnforcementResult struct {
	Allowed bool
	Reason  PolicyReason
}

func Allow() EnforcementResult {
	return EnforcementResult{Allowed: true}
}

func Deny(reason PolicyReason) EnforcementResult {
	return EnforcementResult{Allowed: false, Reason: reason}
}

// SettlementProof is the caller-supplied reference to a rail transaction,
// presented on a second exit call.
type SettlementProof struct {
	Rail      Rail
	Reference string
}

// PendingSettlement is an in-memory record awaiting an asynchronous on-chain
// match. Process-local and not persisted: it is re-registered on the next
// synchronous exit call after a restart.
type PendingSettlement struct {
	SessionId            string
	Plate                string
	LotId                string
	DecisionId           string
	Rail                 Rail
	Asset                *Asset
	ExpectedAmountAtomic string
	ReceiverWallet       string
	CreatedAt            time.Time
}

// TransferEvent is one transfer observed on a ledger or token contract.
type TransferEvent struct {
	Rail         Rail
	Asset        *Asset
	TxHash       string
	From         string
	To           string
	AmountAtomic string
	ObservedAt   time.Time
}
