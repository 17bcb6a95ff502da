package evaluate_policy

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

// HighRiskScore is the threshold above which a grant or decision requires
// manual approval. It never denies on its own.
const HighRiskScore = 80

// EntryContext is everything known about a vehicle at the gate.
type EntryContext struct {
	LotId      string
	OperatorId string
	VehicleGeo *pure_utils.GeoPoint
	RiskScore  int
	// OfferedRails and OfferedAssets are what the lot is actually capable
	// of accepting, before policy narrowing.
	OfferedRails  []models.Rail
	OfferedAssets []models.Asset
}

// EvaluateEntry issues the session capability grant at vehicle entry. The
// first failing check short-circuits into a denial grant: empty allowed
// sets and a short expiry, so a denied grant cannot linger as a reusable
// artifact.
func EvaluateEntry(policy models.EffectivePolicy, entry EntryContext, now time.Time) models.SessionPolicyGrant {
	policyHash := pure_utils.ContentHash(struct {
		Policy models.EffectivePolicy
		Lot    string
	}{policy, entry.LotId})

	if policy.AllowedOperators != nil && !slices.Contains(policy.AllowedOperators, entry.OperatorId) {
		return deniedGrant(models.ReasonOperatorNotAllowed, policyHash, now)
	}
	if policy.AllowedLots != nil && !slices.Contains(policy.AllowedLots, entry.LotId) {
		return deniedGrant(models.ReasonLotNotAllowed, policyHash, now)
	}
	if len(policy.GeoFenceGroups) > 0 {
		if entry.VehicleGeo == nil || !geoAllowed(policy.GeoFenceGroups, *entry.VehicleGeo) {
			return deniedGrant(models.ReasonGeoNotAllowed, policyHash, now)
		}
	}

	// an absent offer list is an offer of nothing, not "no restriction"
	if len(entry.OfferedRails) == 0 {
		return deniedGrant(models.ReasonRailNotAllowed, policyHash, now)
	}
	allowedRails := intersect(policy.AllowedRails, entry.OfferedRails)
	if len(allowedRails) == 0 {
		return deniedGrant(models.ReasonRailNotAllowed, policyHash, now)
	}

	allowedAssets := intersectAssets(policy.AllowedAssets, entry.OfferedAssets)
	if cryptoRailIn(allowedRails) && len(allowedAssets) == 0 {
		return deniedGrant(models.ReasonAssetNotAllowed, policyHash, now)
	}

	grant := models.SessionPolicyGrant{
		Id:            uuid.NewString(),
		PolicyHash:    policyHash,
		AllowedRails:  allowedRails,
		AllowedAssets: allowedAssets,
		Caps:          policy.Caps,
		CreatedAt:     now,
		ExpiresAt:     now.Add(models.GrantValidity),
	}
	if entry.RiskScore >= HighRiskScore {
		grant.RequireApproval = true
		grant.Reasons = append(grant.Reasons, models.ReasonRiskHigh, models.ReasonNeedsApproval)
	}
	return grant
}

func deniedGrant(reason models.PolicyReason, policyHash string, now time.Time) models.SessionPolicyGrant {
	return models.SessionPolicyGrant{
		Id:            uuid.NewString(),
		PolicyHash:    policyHash,
		AllowedRails:  []models.Rail{},
		AllowedAssets: []models.Asset{},
		Reasons:       []models.PolicyReason{reason},
		CreatedAt:     now,
		ExpiresAt:     now.Add(models.DeniedGrantValidity),
	}
}

// geoAllowed requires the point to fall inside at least one circle of every
// restricting layer's fence group.
func geoAllowed(groups [][]pure_utils.GeoCircle, p pure_utils.GeoPoint) bool {
	for _, group := range groups {
		insideGroup := false
		for _, circle := range group {
			if circle.Contains(p) {
				insideGroup = true
				break
			}
		}
		if !insideGroup {
			return false
		}
	}
	return true
}

func cryptoRailIn(rails []models.Rail) bool {
	for _, r := range rails {
		if r.RequiresAsset() {
			return true
		}
	}
	return false
}
