package pricing

import (
	"math/big"
	"time"

	"github.com/parkhaus/parkhaus-backend/models"
)

// ComputeFee prices an elapsed stay: every started billing increment is
// charged at hourlyRate * increment / 60, in fiat minor units. A stay of
// zero or negative duration costs nothing, as does a lot with no tariff.
func ComputeFee(entry, exit time.Time, pricing models.LotPricing) *big.Int {
	if pricing.HourlyRateMinor <= 0 || pricing.IncrementMinutes <= 0 {
		return big.NewInt(0)
	}
	elapsed := exit.Sub(entry)
	if elapsed <= 0 {
		return big.NewInt(0)
	}

	incrementLength := time.Duration(pricing.IncrementMinutes) * time.Minute
	increments := int64(elapsed / incrementLength)
	if elapsed%incrementLength > 0 {
		increments++
	}

	// per-increment price, kept in integer math: rate * increment / 60
	fee := big.NewInt(pricing.HourlyRateMinor)
	fee.Mul(fee, big.NewInt(int64(pricing.IncrementMinutes)))
	fee.Div(fee, big.NewInt(60))
	return fee.Mul(fee, big.NewInt(increments))
}
