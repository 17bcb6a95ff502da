package pricing

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaus/parkhaus-backend/models"
)

func TestComputeFee(t *testing.T) {
	// $8/hour billed in 15 minute increments: $2 per started increment
	tariff := models.LotPricing{Currency: "USD", HourlyRateMinor: 800, IncrementMinutes: 15}
	entry := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{"one minute starts an increment", time.Minute, 200},
		{"exactly one increment", 15 * time.Minute, 200},
		{"one second into the next increment", 15*time.Minute + time.Second, 400},
		{"a full hour", time.Hour, 800},
		{"61 minutes starts a fifth increment", 61 * time.Minute, 1000},
		{"zero elapsed", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := ComputeFee(entry, entry.Add(tt.elapsed), tariff)
			assert.Zero(t, fee.Cmp(big.NewInt(tt.want)), "want %d got %s", tt.want, fee)
		})
	}
}

func TestComputeFee_NoTariffMeansZero(t *testing.T) {
	entry := time.Now().Add(-2 * time.Hour)
	fee := ComputeFee(entry, time.Now(), models.LotPricing{})
	assert.Zero(t, fee.Sign())
}

func TestStaticConverter_RoundsUpSoQuotesNeverUnderpay(t *testing.T) {
	xrp := models.Asset{Kind: models.AssetKindXrp, Code: "XRP", Decimals: 6}
	converter := NewStaticConverter([]AssetRate{
		{AssetCode: "XRP", FiatCurrency: "USD", UnitPriceMinor: 300}, // $3.00 per XRP
	})

	// $10.00 at $3.00/XRP = 3.333... XRP, rounded up by one drop
	atomic, err := converter.FiatToAsset(big.NewInt(1000), "USD", xrp)
	require.NoError(t, err)
	assert.Equal(t, "3333334", atomic.String())

	// an exact division stays exact
	atomic, err = converter.FiatToAsset(big.NewInt(900), "USD", xrp)
	require.NoError(t, err)
	assert.Equal(t, "3000000", atomic.String())
}

func TestStaticConverter_Inverse(t *testing.T) {
	usdc := models.Asset{Kind: models.AssetKindToken, Code: "USDC", ChainId: 8453, Contract: "0xA0b8", Decimals: 6}
	converter := NewStaticConverter([]AssetRate{
		{AssetCode: "USDC", FiatCurrency: "USD", UnitPriceMinor: 100},
	})

	minor, err := converter.AssetToFiat(big.NewInt(12_340_000), usdc, "USD")
	require.NoError(t, err)
	assert.Equal(t, "1234", minor.String())
}

func TestStaticConverter_UnknownPairFails(t *testing.T) {
	converter := NewStaticConverter(nil)
	_, err := converter.FiatToAsset(big.NewInt(100), "USD",
		models.Asset{Kind: models.AssetKindXrp, Code: "XRP", Decimals: 6})
	assert.Error(t, err)
}
