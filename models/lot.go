package models

import "github.com/parkhaus/parkhaus-backend/pure_utils"

// LotPricing is the elapsed-time tariff of a lot, in fiat minor units.
type LotPricing struct {
	Currency         string `yaml:"currency"`
	HourlyRateMinor  int64  `yaml:"hourly_rate_minor"`
	IncrementMinutes int    `yaml:"increment_minutes"`
}

// Lot is the static configuration of one parking lot: capacity, tariff, the
// rails it can accept and where each rail settles to. Loaded once at startup.
type Lot struct {
	Id            string                `yaml:"id"`
	Name          string                `yaml:"name"`
	OperatorId    string                `yaml:"operator_id"`
	Capacity      int                   `yaml:"capacity"`
	Pricing       LotPricing            `yaml:"pricing"`
	OfferedRails  []Rail                `yaml:"offered_rails"`
	OfferedAssets []Asset               `yaml:"offered_assets"`
	Destinations  map[Rail]string       `yaml:"destinations"`
	Location      *pure_utils.GeoPoint  `yaml:"location,omitempty"`
	Policy        *Policy               `yaml:"policy,omitempty"`
}

func (l Lot) DestinationFor(rail Rail) string {
	return l.Destinations[rail]
}
