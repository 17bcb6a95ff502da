package models

import "strings"

type AssetKind string

const (
	AssetKindXrp   AssetKind = "xrp"
	AssetKindIou   AssetKind = "iou"
	AssetKindToken AssetKind = "token"
)

// Asset is the concrete currency settled on a crypto rail.
type Asset struct {
	Kind AssetKind `json:"kind" yaml:"kind"`
	// Code is a display symbol ("XRP", "RLUSD", "USDC"), not part of equality.
	Code string `json:"code" yaml:"code"`
	// Currency and Issuer identify an issued currency on the ledger.
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Issuer   string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	// ChainId and Contract identify a token on a smart-contract chain.
	ChainId  int64  `json:"chain_id,omitempty" yaml:"chain_id,omitempty"`
	Contract string `json:"contract,omitempty" yaml:"contract,omitempty"`
	// Decimals is the number of decimals of one whole unit.
	Decimals int `json:"decimals" yaml:"decimals"`
}

// Equal is the structural asset equality used by grant validation and
// settlement enforcement: the native asset matches on kind alone, an issued
// currency on currency+issuer, a token on chain id + contract address.
func (a Asset) Equal(b Asset) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case AssetKindXrp:
		return true
	case AssetKindIou:
		return a.Currency == b.Currency && a.Issuer == b.Issuer
	case AssetKindToken:
		return a.ChainId == b.ChainId && strings.EqualFold(a.Contract, b.Contract)
	}
	return false
}

func AssetIn(asset Asset, list []Asset) bool {
	for _, candidate := range list {
		if asset.Equal(candidate) {
			return true
		}
	}
	return false
}
