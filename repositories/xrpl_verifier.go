package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

// XrplVerifier reads a transaction from a rippled JSON-RPC endpoint. One
// instance serves either the native-asset rail or the issued-currency rail;
// the delivered_amount shape tells them apart on the wire.
type XrplVerifier struct {
	client  *http.Client
	baseUrl string
	rail    models.Rail
}

func NewXrplVerifier(client *http.Client, baseUrl string, rail models.Rail) XrplVerifier {
	return XrplVerifier{
		client:  client,
		baseUrl: baseUrl,
		rail:    rail,
	}
}

func (v XrplVerifier) Rail() models.Rail {
	return v.rail
}

func (v XrplVerifier) VerifySettlement(ctx context.Context, reference string) (models.SettlementResult, error) {
	body, err := v.fetchTx(ctx, reference)
	if err != nil {
		return models.SettlementResult{}, err
	}

	result := gjson.GetBytes(body, "result")
	if status := result.Get("status").String(); status == "error" {
		if result.Get("error").String() == "txnNotFound" {
			return models.SettlementResult{}, errors.Wrapf(models.NotFoundError,
				"transaction %s not found on the ledger", reference)
		}
		return models.SettlementResult{}, errors.Newf("ledger returned error '%s' for transaction %s",
			result.Get("error").String(), reference)
	}

	// an unvalidated transaction can still change or disappear
	if !result.Get("validated").Bool() {
		return models.SettlementResult{}, errors.WithStack(models.ErrSettlementNotFinal)
	}
	if txResult := result.Get("meta.TransactionResult").String(); txResult != "tesSUCCESS" {
		return models.SettlementResult{}, errors.Wrapf(models.BadParameterError,
			"transaction %s did not succeed (%s)", reference, txResult)
	}

	settlement := models.SettlementResult{
		Rail:        v.rail,
		TxHash:      result.Get("hash").String(),
		Destination: result.Get("tx_json.Destination").String(),
		Payer:       result.Get("tx_json.Account").String(),
	}
	if settlement.TxHash == "" {
		// older rippled versions put the transaction at the result root
		settlement.TxHash = reference
		settlement.Destination = result.Get("Destination").String()
		settlement.Payer = result.Get("Account").String()
	}

	// delivered_amount, never Amount: with partial payments the two differ
	// and only the delivered one is money the receiver actually got
	delivered := result.Get("meta.delivered_amount")
	switch {
	case delivered.Type == gjson.String:
		// drops of the native asset
		settlement.Asset = &models.Asset{Kind: models.AssetKindXrp, Code: "XRP", Decimals: 6}
		settlement.AmountAtomic = delivered.String()
	case delivered.IsObject():
		asset := models.Asset{
			Kind:     models.AssetKindIou,
			Code:     delivered.Get("currency").String(),
			Currency: delivered.Get("currency").String(),
			Issuer:   delivered.Get("issuer").String(),
			Decimals: 6,
		}
		atomic, err := pure_utils.DecimalToAtomic(delivered.Get("value").String(), asset.Decimals)
		if err != nil {
			return models.SettlementResult{}, errors.Wrap(err, "can't read delivered amount")
		}
		settlement.Asset = &asset
		settlement.AmountAtomic = atomic
	default:
		return models.SettlementResult{}, errors.Newf(
			"transaction %s has no delivered amount", reference)
	}

	return settlement, nil
}

func (v XrplVerifier) fetchTx(ctx context.Context, txHash string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"method": "tx",
		"params": []map[string]any{{
			"transaction": txHash,
			"binary":      false,
		}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't encode tx request")
	}

	return retry.DoWithData(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseUrl, bytes.NewReader(payload))
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "ledger request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, errors.Wrap(models.ServiceUnavailableError,
				fmt.Sprintf("ledger returned status %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
}
