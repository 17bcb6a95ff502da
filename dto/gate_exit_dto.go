package dto

import (
	"time"

	"github.com/parkhaus/parkhaus-backend/models"
)

type GateExitRequest struct {
	Plate string `json:"plate" binding:"required"`
	LotId string `json:"lot_id" binding:"required"`
}

// PaymentOption is one settlement quote the driver can pay: the exact atomic
// amount for one rail/asset, and where it must land.
type PaymentOption struct {
	QuoteId      string    `json:"quote_id"`
	Rail         string    `json:"rail"`
	Asset        *Asset    `json:"asset,omitempty"`
	AmountAtomic string    `json:"amount_atomic"`
	Decimals     int       `json:"decimals"`
	Destination  string    `json:"destination"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func AdaptPaymentOption(quote models.SettlementQuote) PaymentOption {
	return PaymentOption{
		QuoteId:      quote.Id,
		Rail:         string(quote.Rail),
		Asset:        AdaptOptionalAsset(quote.Asset),
		AmountAtomic: quote.AmountAtomic,
		Decimals:     quote.Decimals,
		Destination:  quote.Destination,
		ExpiresAt:    quote.ExpiresAt,
	}
}

// GateExitPricedResponse is the "payment required" outcome: the fee is
// computed, the decision is stored, and the caller picks an option to settle.
type GateExitPricedResponse struct {
	Status         string          `json:"status"`
	SessionId      string          `json:"session_id"`
	DecisionId     string          `json:"decision_id"`
	Action         string          `json:"action"`
	FeeAmountMinor string          `json:"fee_amount_minor"`
	FeeCurrency    string          `json:"fee_currency"`
	PaymentOptions []PaymentOption `json:"payment_options"`
	Reasons        []string        `json:"reasons,omitempty"`
	ExpiresAt      time.Time       `json:"expires_at"`
	// Degraded marks a fee computed from the operator's entry ledger because
	// the session store was unreachable.
	Degraded bool `json:"degraded,omitempty"`
}

func AdaptGateExitPricedResponse(sessionId string, decision models.PaymentPolicyDecision, degraded bool) GateExitPricedResponse {
	options := make([]PaymentOption, len(decision.Quotes))
	for i, q := range decision.Quotes {
		options[i] = AdaptPaymentOption(q)
	}
	reasons := make([]string, len(decision.Reasons))
	for i, r := range decision.Reasons {
		reasons[i] = string(r)
	}
	return GateExitPricedResponse{
		Status:         "payment_required",
		SessionId:      sessionId,
		DecisionId:     decision.Id,
		Action:         string(decision.Action),
		FeeAmountMinor: decision.PriceFiatMinor,
		FeeCurrency:    decision.FiatCurrency,
		PaymentOptions: options,
		Reasons:        reasons,
		ExpiresAt:      decision.ExpiresAt,
		Degraded:       degraded,
	}
}

// GateExitClosedResponse is the terminal outcome: the settlement satisfied
// the decision and the session is closed.
type GateExitClosedResponse struct {
	Status         string    `json:"status"`
	SessionId      string    `json:"session_id"`
	FeeAmountMinor string    `json:"fee_amount_minor"`
	FeeCurrency    string    `json:"fee_currency"`
	Rail           string    `json:"rail"`
	TxHash         string    `json:"tx_hash"`
	ExitTime       time.Time `json:"exit_time"`
}

func AdaptGateExitClosedResponse(sessionId string, close models.SessionClose) GateExitClosedResponse {
	return GateExitClosedResponse{
		Status:         "closed",
		SessionId:      sessionId,
		FeeAmountMinor: close.FeeAmountMinor,
		FeeCurrency:    close.FeeCurrency,
		Rail:           string(close.Rail),
		TxHash:         close.TxHash,
		ExitTime:       close.ExitTime,
	}
}
