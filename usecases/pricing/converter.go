package pricing

import (
	"math/big"

	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
)

// Converter turns a fiat price into the exact atomic amount of a settlement
// asset, and back for reporting. Rate discovery is outside this service; the
// engine consumes whatever conversion it is handed.
type Converter interface {
	FiatToAsset(amountMinor *big.Int, fiatCurrency string, asset models.Asset) (*big.Int, error)
	AssetToFiat(amountAtomic *big.Int, asset models.Asset, fiatCurrency string) (*big.Int, error)
}

// AssetRate prices one whole unit of an asset in fiat minor units.
type AssetRate struct {
	AssetCode    string `yaml:"asset_code"`
	FiatCurrency string `yaml:"fiat_currency"`
	// UnitPriceMinor is the fiat minor-unit price of 1.0 of the asset.
	UnitPriceMinor int64 `yaml:"unit_price_minor"`
}

// StaticConverter converts with rates fixed at startup. Suitable for
// stablecoin rails and tests; a live-rate implementation satisfies the same
// interface.
type StaticConverter struct {
	rates map[string]AssetRate
}

func NewStaticConverter(rates []AssetRate) *StaticConverter {
	indexed := make(map[string]AssetRate, len(rates))
	for _, r := range rates {
		indexed[rateKey(r.AssetCode, r.FiatCurrency)] = r
	}
	return &StaticConverter{rates: indexed}
}

func rateKey(assetCode, fiatCurrency string) string {
	return assetCode + "/" + fiatCurrency
}

// FiatToAsset computes amountMinor * 10^decimals / unitPrice, rounding up so
// a settled quote never underpays the fiat price.
func (c *StaticConverter) FiatToAsset(amountMinor *big.Int, fiatCurrency string, asset models.Asset) (*big.Int, error) {
	rate, ok := c.rates[rateKey(asset.Code, fiatCurrency)]
	if !ok || rate.UnitPriceMinor <= 0 {
		return nil, errors.Newf("no conversion rate for %s/%s", asset.Code, fiatCurrency)
	}

	numerator := new(big.Int).Mul(amountMinor, pow10(asset.Decimals))
	unitPrice := big.NewInt(rate.UnitPriceMinor)

	atomic, remainder := new(big.Int).QuoRem(numerator, unitPrice, new(big.Int))
	if remainder.Sign() > 0 {
		atomic.Add(atomic, big.NewInt(1))
	}
	return atomic, nil
}

func (c *StaticConverter) AssetToFiat(amountAtomic *big.Int, asset models.Asset, fiatCurrency string) (*big.Int, error) {
	rate, ok := c.rates[rateKey(asset.Code, fiatCurrency)]
	if !ok || rate.UnitPriceMinor <= 0 {
		return nil, errors.Newf("no conversion rate for %s/%s", asset.Code, fiatCurrency)
	}

	minor := new(big.Int).Mul(amountAtomic, big.NewInt(rate.UnitPriceMinor))
	return minor.Div(minor, pow10(asset.Decimals)), nil
}

func pow10(exp int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}
