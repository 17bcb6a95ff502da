package dto

import (
	"time"

	"github.com/parkhaus/parkhaus-backend/models"
)

type PaymentPolicyDecision struct {
	DecisionId     string          `json:"decision_id"`
	Action         string          `json:"action"`
	Rail           string          `json:"rail,omitempty"`
	Asset          *Asset          `json:"asset,omitempty"`
	PriceFiatMinor string          `json:"price_fiat_minor"`
	FiatCurrency   string          `json:"fiat_currency"`
	PaymentOptions []PaymentOption `json:"payment_options,omitempty"`
	SessionGrantId string          `json:"session_grant_id,omitempty"`
	PolicyHash     string          `json:"policy_hash"`
	Reasons        []string        `json:"reasons,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

func AdaptPaymentPolicyDecision(decision models.PaymentPolicyDecision) PaymentPolicyDecision {
	options := make([]PaymentOption, len(decision.Quotes))
	for i, q := range decision.Quotes {
		options[i] = AdaptPaymentOption(q)
	}
	reasons := make([]string, len(decision.Reasons))
	for i, r := range decision.Reasons {
		reasons[i] = string(r)
	}
	return PaymentPolicyDecision{
		DecisionId:     decision.Id,
		Action:         string(decision.Action),
		Rail:           string(decision.Rail),
		Asset:          AdaptOptionalAsset(decision.Asset),
		PriceFiatMinor: decision.PriceFiatMinor,
		FiatCurrency:   decision.FiatCurrency,
		PaymentOptions: options,
		SessionGrantId: decision.SessionGrantId,
		PolicyHash:     decision.PolicyHash,
		Reasons:        reasons,
		CreatedAt:      decision.CreatedAt,
		ExpiresAt:      decision.ExpiresAt,
	}
}
