package evaluate_policy

import (
	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

// ValidateDecisionAgainstGrant proves a decision is a subset of the grant it
// is bound to: rail in the grant's rails, asset structurally in the grant's
// assets, each present cap at most the grant's corresponding cap. The first
// violated condition wins. Non-ALLOW decisions carry no settlement
// obligation yet and skip the check entirely.
func ValidateDecisionAgainstGrant(
	grant models.SessionPolicyGrant,
	decision models.PaymentPolicyDecision,
) (models.PolicyReason, bool) {
	if decision.Action != models.DecisionAllow {
		return "", true
	}

	if !grant.AllowsRail(decision.Rail) {
		return models.ReasonRailNotAllowed, false
	}
	if decision.Asset != nil && !models.AssetIn(*decision.Asset, grant.AllowedAssets) {
		return models.ReasonAssetNotAllowed, false
	}

	if !capWithin(decision.Caps.PerTx, grant.Caps.PerTx) {
		return models.ReasonCapExceededTx, false
	}
	if !capWithin(decision.Caps.PerSession, grant.Caps.PerSession) {
		return models.ReasonCapExceededSession, false
	}
	if !capWithin(decision.Caps.PerDay, grant.Caps.PerDay) {
		return models.ReasonCapExceededDay, false
	}
	return "", true
}

// capWithin checks decision cap <= grant cap when both are present. A
// malformed cap fails the check: the validator proves subset-ness, it never
// guesses.
func capWithin(decisionCap, grantCap string) bool {
	if decisionCap == "" || grantCap == "" {
		return true
	}
	cmp, err := pure_utils.CmpAmounts(decisionCap, grantCap)
	if err != nil {
		return false
	}
	return cmp <= 0
}
