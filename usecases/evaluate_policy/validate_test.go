package evaluate_policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

func validGrant() models.SessionPolicyGrant {
	return models.SessionPolicyGrant{
		Id:            "grant-1",
		AllowedRails:  []models.Rail{models.RailXrplXrp, models.RailEvmToken},
		AllowedAssets: []models.Asset{testXrp, testUsdc},
		Caps:          models.FiatCaps{PerTx: "5000", PerSession: "10000", PerDay: "20000"},
		ExpiresAt:     time.Now().Add(time.Hour),
	}
}

func boundDecision() models.PaymentPolicyDecision {
	return models.PaymentPolicyDecision{
		Id:             "decision-1",
		Action:         models.DecisionAllow,
		Rail:           models.RailXrplXrp,
		Asset:          pure_utils.Ptr(testXrp),
		Caps:           models.FiatCaps{PerTx: "5000", PerSession: "10000", PerDay: "20000"},
		SessionGrantId: "grant-1",
	}
}

func TestValidateDecisionAgainstGrant(t *testing.T) {
	railViolation := boundDecision()
	railViolation.Rail = models.RailCard

	assetViolation := boundDecision()
	assetViolation.Asset = pure_utils.Ptr(testRlusd)

	txCapViolation := boundDecision()
	txCapViolation.Caps.PerTx = "5001"

	sessionCapViolation := boundDecision()
	sessionCapViolation.Caps.PerSession = "999999"

	dayCapViolation := boundDecision()
	dayCapViolation.Caps.PerDay = "20001"

	tests := []struct {
		name     string
		decision models.PaymentPolicyDecision
		ok       bool
		reason   models.PolicyReason
	}{
		{"decision within grant", boundDecision(), true, ""},
		{"rail outside grant", railViolation, false, models.ReasonRailNotAllowed},
		{"asset outside grant", assetViolation, false, models.ReasonAssetNotAllowed},
		{"tx cap above grant", txCapViolation, false, models.ReasonCapExceededTx},
		{"session cap above grant", sessionCapViolation, false, models.ReasonCapExceededSession},
		{"day cap above grant", dayCapViolation, false, models.ReasonCapExceededDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := ValidateDecisionAgainstGrant(validGrant(), tt.decision)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidateDecisionAgainstGrant_SkipsNonTerminalDecisions(t *testing.T) {
	decision := boundDecision()
	decision.Action = models.DecisionRequireApproval
	decision.Rail = models.RailCard // would violate if checked

	_, ok := ValidateDecisionAgainstGrant(validGrant(), decision)

	assert.True(t, ok)
}

func TestValidateDecisionAgainstGrant_AbsentCapsAreNotCompared(t *testing.T) {
	grant := validGrant()
	grant.Caps = models.FiatCaps{}
	decision := boundDecision()
	decision.Caps = models.FiatCaps{PerTx: "999999999"}

	_, ok := ValidateDecisionAgainstGrant(grant, decision)

	assert.True(t, ok)
}

func TestValidateDecisionAgainstGrant_UnsetAssetIsAccepted(t *testing.T) {
	grant := validGrant()
	grant.AllowedRails = []models.Rail{models.RailCard}
	decision := boundDecision()
	decision.Rail = models.RailCard
	decision.Asset = nil

	_, ok := ValidateDecisionAgainstGrant(grant, decision)

	assert.True(t, ok)
}
