package dto

import "github.com/parkhaus/parkhaus-backend/models"

type Asset struct {
	Kind     string `json:"kind"`
	Code     string `json:"code"`
	Currency string `json:"currency,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	ChainId  int64  `json:"chain_id,omitempty"`
	Contract string `json:"contract,omitempty"`
	Decimals int    `json:"decimals"`
}

func AdaptAsset(asset models.Asset) Asset {
	return Asset{
		Kind:     string(asset.Kind),
		Code:     asset.Code,
		Currency: asset.Currency,
		Issuer:   asset.Issuer,
		ChainId:  asset.ChainId,
		Contract: asset.Contract,
		Decimals: asset.Decimals,
	}
}

func AdaptOptionalAsset(asset *models.Asset) *Asset {
	if asset == nil {
		return nil
	}
	out := AdaptAsset(*asset)
	return &out
}
