package evaluate_policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

func TestResolvePolicy_IntersectsAllowlists(t *testing.T) {
	platform := models.Policy{
		AllowedRails: []models.Rail{models.RailXrplXrp, models.RailEvmToken, models.RailCard},
	}
	lot := models.Policy{
		AllowedRails: []models.Rail{models.RailCard, models.RailEvmToken, models.RailHosted},
	}

	eff := ResolvePolicy(models.PolicyStack{Platform: platform, Lot: &lot})

	assert.Equal(t, []models.Rail{models.RailCard, models.RailEvmToken}, eff.AllowedRails)
}

func TestResolvePolicy_LaterLayerCannotWiden(t *testing.T) {
	platform := models.Policy{AllowedLots: []string{"lot-a"}}
	vehicle := models.Policy{AllowedLots: []string{"lot-a", "lot-b", "lot-c"}}

	eff := ResolvePolicy(models.PolicyStack{Platform: platform, Vehicle: &vehicle})

	assert.Equal(t, []string{"lot-a"}, eff.AllowedLots)
}

func TestResolvePolicy_AbsentAllowlistMeansUnrestricted(t *testing.T) {
	eff := ResolvePolicy(models.PolicyStack{Platform: models.Policy{}})

	assert.Nil(t, eff.AllowedRails)
	assert.Nil(t, eff.AllowedAssets)
	assert.Nil(t, eff.AllowedLots)
}

func TestResolvePolicy_EmptyIntersectionDeniesEverything(t *testing.T) {
	platform := models.Policy{AllowedRails: []models.Rail{models.RailXrplXrp}}
	lot := models.Policy{AllowedRails: []models.Rail{models.RailCard}}

	eff := ResolvePolicy(models.PolicyStack{Platform: platform, Lot: &lot})

	assert.NotNil(t, eff.AllowedRails)
	assert.Empty(t, eff.AllowedRails)
}

func TestResolvePolicy_ScalarsTakeLaterLayer(t *testing.T) {
	platform := models.Policy{Caps: models.FiatCaps{PerTx: "10000", PerDay: "50000"}}
	owner := models.Policy{Caps: models.FiatCaps{PerTx: "2000"}}

	eff := ResolvePolicy(models.PolicyStack{Platform: platform, Owner: &owner})

	assert.Equal(t, "2000", eff.Caps.PerTx)
	assert.Equal(t, "50000", eff.Caps.PerDay)
	assert.Empty(t, eff.Caps.PerSession)
}

func TestResolvePolicy_AssetsIntersectStructurally(t *testing.T) {
	rlusd := models.Asset{Kind: models.AssetKindIou, Code: "RLUSD", Currency: "RLUSD", Issuer: "rIssuer1", Decimals: 6}
	usdc := models.Asset{Kind: models.AssetKindToken, Code: "USDC", ChainId: 8453, Contract: "0xA0b8", Decimals: 6}
	xrp := models.Asset{Kind: models.AssetKindXrp, Code: "XRP", Decimals: 6}

	platform := models.Policy{AllowedAssets: []models.Asset{rlusd, usdc, xrp}}
	// same token, different case on the contract address
	usdcUpper := usdc
	usdcUpper.Contract = "0XA0B8"
	lot := models.Policy{AllowedAssets: []models.Asset{usdcUpper, rlusd}}

	eff := ResolvePolicy(models.PolicyStack{Platform: platform, Lot: &lot})

	assert.Len(t, eff.AllowedAssets, 2)
	assert.True(t, models.AssetIn(usdc, eff.AllowedAssets))
	assert.True(t, models.AssetIn(rlusd, eff.AllowedAssets))
	assert.False(t, models.AssetIn(xrp, eff.AllowedAssets))
}

func TestResolvePolicy_GeoFencesStackPerLayer(t *testing.T) {
	downtown := pure_utils.GeoCircle{Center: pure_utils.GeoPoint{Lat: 48.85, Lng: 2.35}, RadiusMeters: 5000}
	cityWide := pure_utils.GeoCircle{Center: pure_utils.GeoPoint{Lat: 48.85, Lng: 2.35}, RadiusMeters: 50000}

	platform := models.Policy{GeoFences: []pure_utils.GeoCircle{cityWide}}
	lot := models.Policy{GeoFences: []pure_utils.GeoCircle{downtown}}

	eff := ResolvePolicy(models.PolicyStack{Platform: platform, Lot: &lot})

	assert.Len(t, eff.GeoFenceGroups, 2)
}
