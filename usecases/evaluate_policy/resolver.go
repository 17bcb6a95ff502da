package evaluate_policy

import (
	"slices"

	"github.com/hashicorp/go-set/v2"

	"github.com/parkhaus/parkhaus-backend/models"
)

// ResolvePolicy folds a policy stack into one effective policy. Scalars take
// the later layer's value when present; allowlists are intersected, so a
// later layer may only narrow, never widen, the permitted set. A nil
// allowlist at every layer means "no restriction".
func ResolvePolicy(stack models.PolicyStack) models.EffectivePolicy {
	var eff models.EffectivePolicy
	for _, layer := range stack.Layers() {
		eff.AllowedRails = intersect(eff.AllowedRails, layer.AllowedRails)
		eff.AllowedLots = intersect(eff.AllowedLots, layer.AllowedLots)
		eff.AllowedOperators = intersect(eff.AllowedOperators, layer.AllowedOperators)
		eff.AllowedAssets = intersectAssets(eff.AllowedAssets, layer.AllowedAssets)

		if layer.GeoFences != nil {
			eff.GeoFenceGroups = append(eff.GeoFenceGroups, layer.GeoFences)
		}
		if layer.Caps.PerTx != "" {
			eff.Caps.PerTx = layer.Caps.PerTx
		}
		if layer.Caps.PerSession != "" {
			eff.Caps.PerSession = layer.Caps.PerSession
		}
		if layer.Caps.PerDay != "" {
			eff.Caps.PerDay = layer.Caps.PerDay
		}
		if layer.RequireApprovalAboveMinor != "" {
			eff.RequireApprovalAboveMinor = layer.RequireApprovalAboveMinor
		}
	}
	return eff
}

// intersect narrows current by layer. A nil layer leaves current untouched;
// a nil current adopts the layer's list. The result keeps the layer's order
// and is non-nil as soon as any layer restricted the dimension, so an empty
// result denies everything.
func intersect[T comparable](current, layer []T) []T {
	if layer == nil {
		return current
	}
	if current == nil {
		return slices.Clone(layer)
	}
	currentSet := set.From(current)
	out := make([]T, 0, len(layer))
	for _, v := range layer {
		if currentSet.Contains(v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// intersectAssets is intersect for assets, which carry their own structural
// equality and cannot go through a hash set.
func intersectAssets(current, layer []models.Asset) []models.Asset {
	if layer == nil {
		return current
	}
	if current == nil {
		return slices.Clone(layer)
	}
	out := make([]models.Asset, 0, len(layer))
	for _, asset := range layer {
		if models.AssetIn(asset, current) && !models.AssetIn(asset, out) {
			out = append(out, asset)
		}
	}
	return out
}
