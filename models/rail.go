package models

// Rail is a payment channel a session can settle on.
type Rail string

const (
	// RailXrplXrp settles in the ledger's native asset.
	RailXrplXrp Rail = "xrpl_xrp"
	// RailXrplIou settles in an issued currency on the ledger.
	RailXrplIou Rail = "xrpl_iou"
	// RailEvmToken settles in a fungible token on a smart-contract chain.
	RailEvmToken Rail = "evm_token"
	// RailCard settles through the card processor.
	RailCard Rail = "card"
	// RailHosted settles through a hosted checkout page.
	RailHosted Rail = "hosted"
)

func RailFrom(s string) (Rail, bool) {
	switch Rail(s) {
	case RailXrplXrp, RailXrplIou, RailEvmToken, RailCard, RailHosted:
		return Rail(s), true
	}
	return "", false
}

// RequiresAsset reports whether settlements on this rail are denominated in
// a specific crypto asset. Card and hosted rails settle directly in fiat.
func (r Rail) RequiresAsset() bool {
	return r != RailCard && r != RailHosted
}
