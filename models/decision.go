package models

import "time"

type DecisionAction string

const (
	DecisionAllow           DecisionAction = "ALLOW"
	DecisionDeny            DecisionAction = "DENY"
	DecisionRequireApproval DecisionAction = "REQUIRE_APPROVAL"
)

// DecisionValidity is the short lifetime of a payment decision. Quotes are
// FX-derived; letting a decision linger would let stale prices settle.
const DecisionValidity = 5 * time.Minute

// SettlementQuote is one payable option inside a decision: the exact atomic
// amount and destination for one rail/asset.
type SettlementQuote struct {
	Id           string    `json:"quote_id"`
	Rail         Rail      `json:"rail"`
	Asset        *Asset    `json:"asset,omitempty"`
	AmountAtomic string    `json:"amount_atomic"`
	Decimals     int       `json:"decimals"`
	Destination  string    `json:"destination"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PaymentPolicyDecision is a priced, rail/asset-selected authorization for
// one settlement attempt. Immutable once created.
type PaymentPolicyDecision struct {
	Id             string            `json:"decision_id"`
	Action         DecisionAction    `json:"action"`
	Rail           Rail              `json:"rail,omitempty"`
	Asset          *Asset            `json:"asset,omitempty"`
	PriceFiatMinor string            `json:"price_fiat_minor"`
	FiatCurrency   string            `json:"fiat_currency"`
	Caps           FiatCaps          `json:"caps_fiat_minor"`
	Quotes         []SettlementQuote `json:"settlement_quotes,omitempty"`
	// ChosenQuoteId points at the quote of the selected rail/asset.
	ChosenQuoteId  string         `json:"chosen_quote_id,omitempty"`
	SessionGrantId string         `json:"session_grant_id,omitempty"`
	PolicyHash     string         `json:"policy_hash"`
	Reasons        []PolicyReason `json:"reasons,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

func (d PaymentPolicyDecision) Expired(now time.Time) bool {
	return !d.ExpiresAt.After(now)
}

func (d PaymentPolicyDecision) FirstReason(fallback PolicyReason) PolicyReason {
	if len(d.Reasons) > 0 {
		return d.Reasons[0]
	}
	return fallback
}

func (d PaymentPolicyDecision) QuoteById(id string) *SettlementQuote {
	for i := range d.Quotes {
		if d.Quotes[i].Id == id {
			return &d.Quotes[i]
		}
	}
	return nil
}

// QuoteFor finds the quote for a rail (and asset, on asset-bearing rails).
func (d PaymentPolicyDecision) QuoteFor(rail Rail, asset *Asset) *SettlementQuote {
	for i := range d.Quotes {
		q := &d.Quotes[i]
		if q.Rail != rail {
			continue
		}
		if !rail.RequiresAsset() {
			return q
		}
		if q.Asset != nil && asset != nil && q.Asset.Equal(*asset) {
			return q
		}
	}
	return nil
}

func (d PaymentPolicyDecision) ChosenQuote() *SettlementQuote {
	if d.ChosenQuoteId == "" {
		return nil
	}
	return d.QuoteById(d.ChosenQuoteId)
}
