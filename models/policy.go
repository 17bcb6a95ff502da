package models

import (
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

// PolicyReason is a machine-readable code attached to grants, decisions and
// enforcement verdicts.
type PolicyReason string

const (
	ReasonOperatorNotAllowed PolicyReason = "OPERATOR_NOT_ALLOWED"
	ReasonLotNotAllowed      PolicyReason = "LOT_NOT_ALLOWED"
	ReasonGeoNotAllowed      PolicyReason = "GEO_NOT_ALLOWED"
	ReasonRailNotAllowed     PolicyReason = "RAIL_NOT_ALLOWED"
	ReasonAssetNotAllowed    PolicyReason = "ASSET_NOT_ALLOWED"
	ReasonCapExceededTx      PolicyReason = "CAP_EXCEEDED_TX"
	ReasonCapExceededSession PolicyReason = "CAP_EXCEEDED_SESSION"
	ReasonCapExceededDay     PolicyReason = "CAP_EXCEEDED_DAY"
	ReasonRiskHigh           PolicyReason = "RISK_HIGH"
	ReasonNeedsApproval      PolicyReason = "NEEDS_APPROVAL"
	ReasonPriceSpike         PolicyReason = "PRICE_SPIKE"
	ReasonGrantExpired       PolicyReason = "GRANT_EXPIRED"
	ReasonReceiverMismatch   PolicyReason = "RECEIVER_MISMATCH"
	ReasonSettlementNotMatch PolicyReason = "SETTLEMENT_NOT_MATCHED"
)

// FiatCaps are spending limits in fiat minor units, serialized as base-10
// strings. An empty string means the cap is not set.
type FiatCaps struct {
	PerTx      string `json:"per_tx,omitempty" yaml:"per_tx,omitempty"`
	PerSession string `json:"per_session,omitempty" yaml:"per_session,omitempty"`
	PerDay     string `json:"per_day,omitempty" yaml:"per_day,omitempty"`
}

// Policy is one layer of rules. A nil allowlist means the layer does not
// restrict that dimension; an empty non-nil allowlist denies everything.
type Policy struct {
	AllowedRails     []Rail                  `json:"allowed_rails,omitempty" yaml:"allowed_rails,omitempty"`
	AllowedAssets    []Asset                 `json:"allowed_assets,omitempty" yaml:"allowed_assets,omitempty"`
	AllowedLots      []string                `json:"allowed_lots,omitempty" yaml:"allowed_lots,omitempty"`
	AllowedOperators []string                `json:"allowed_operators,omitempty" yaml:"allowed_operators,omitempty"`
	GeoFences        []pure_utils.GeoCircle  `json:"geo_fences,omitempty" yaml:"geo_fences,omitempty"`
	Caps             FiatCaps                `json:"caps,omitempty" yaml:"caps,omitempty"`
	// RequireApprovalAboveMinor forces a REQUIRE_APPROVAL outcome on prices
	// above this threshold (fiat minor units, empty = no threshold).
	RequireApprovalAboveMinor string `json:"require_approval_above_minor,omitempty" yaml:"require_approval_above_minor,omitempty"`
}

// PolicyStack layers policies from the widest scope to the narrowest. Later
// layers may only narrow allowlists; scalars take the later layer's value.
type PolicyStack struct {
	Platform Policy
	Owner    *Policy
	Vehicle  *Policy
	Lot      *Policy
}

func (s PolicyStack) Layers() []Policy {
	layers := []Policy{s.Platform}
	for _, p := range []*Policy{s.Owner, s.Vehicle, s.Lot} {
		if p != nil {
			layers = append(layers, *p)
		}
	}
	return layers
}

// EffectivePolicy is the result of folding a PolicyStack. Computed per
// request, never persisted. Geo fences keep one group per restricting layer:
// a location must fall inside at least one circle of every group, which is
// the only faithful intersection of circle allowlists.
type EffectivePolicy struct {
	AllowedRails              []Rail
	AllowedAssets             []Asset
	AllowedLots               []string
	AllowedOperators          []string
	GeoFenceGroups            [][]pure_utils.GeoCircle
	Caps                      FiatCaps
	RequireApprovalAboveMinor string
}
