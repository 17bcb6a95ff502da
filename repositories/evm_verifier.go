package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/parkhaus/parkhaus-backend/models"
)

// erc20TransferTopic is keccak256("Transfer(address,address,uint256)").
const erc20TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// EvmVerifier reads a token transfer from an EVM node's JSON-RPC endpoint.
// It only recognizes transfers of the configured token assets; a receipt
// whose logs touch no known token is rejected rather than guessed at.
type EvmVerifier struct {
	client           *http.Client
	rpcUrl           string
	chainId          int64
	knownAssets      []models.Asset
	minConfirmations int64
}

func NewEvmVerifier(
	client *http.Client,
	rpcUrl string,
	chainId int64,
	knownAssets []models.Asset,
	minConfirmations int64,
) EvmVerifier {
	return EvmVerifier{
		client:           client,
		rpcUrl:           rpcUrl,
		chainId:          chainId,
		knownAssets:      knownAssets,
		minConfirmations: minConfirmations,
	}
}

func (v EvmVerifier) Rail() models.Rail {
	return models.RailEvmToken
}

func (v EvmVerifier) VerifySettlement(ctx context.Context, reference string) (models.SettlementResult, error) {
	receipt, err := v.rpcCall(ctx, "eth_getTransactionReceipt", []any{reference})
	if err != nil {
		return models.SettlementResult{}, err
	}
	if receipt.Type == gjson.Null || !receipt.Exists() {
		// no receipt yet: the transaction is unmined or unknown
		return models.SettlementResult{}, errors.WithStack(models.ErrSettlementNotFinal)
	}
	if receipt.Get("status").String() != "0x1" {
		return models.SettlementResult{}, errors.Wrapf(models.BadParameterError,
			"transaction %s reverted", reference)
	}

	if v.minConfirmations > 0 {
		confirmed, err := v.hasConfirmations(ctx, receipt.Get("blockNumber").String())
		if err != nil {
			return models.SettlementResult{}, err
		}
		if !confirmed {
			return models.SettlementResult{}, errors.WithStack(models.ErrSettlementNotFinal)
		}
	}

	for _, log := range receipt.Get("logs").Array() {
		topics := log.Get("topics").Array()
		if len(topics) != 3 || topics[0].String() != erc20TransferTopic {
			continue
		}
		asset, known := v.assetForContract(log.Get("address").String())
		if !known {
			continue
		}

		amount, ok := new(big.Int).SetString(strings.TrimPrefix(log.Get("data").String(), "0x"), 16)
		if !ok {
			return models.SettlementResult{}, errors.Newf(
				"transaction %s has a malformed transfer amount", reference)
		}

		return models.SettlementResult{
			Rail:         models.RailEvmToken,
			Asset:        &asset,
			AmountAtomic: amount.String(),
			Destination:  addressFromTopic(topics[2].String()),
			Payer:        addressFromTopic(topics[1].String()),
			TxHash:       receipt.Get("transactionHash").String(),
		}, nil
	}

	return models.SettlementResult{}, errors.Wrapf(models.BadParameterError,
		"transaction %s transfers no recognized token", reference)
}

func (v EvmVerifier) assetForContract(contract string) (models.Asset, bool) {
	for _, asset := range v.knownAssets {
		if asset.Kind == models.AssetKindToken &&
			asset.ChainId == v.chainId &&
			strings.EqualFold(asset.Contract, contract) {
			return asset, true
		}
	}
	return models.Asset{}, false
}

func (v EvmVerifier) hasConfirmations(ctx context.Context, blockNumberHex string) (bool, error) {
	head, err := v.rpcCall(ctx, "eth_blockNumber", []any{})
	if err != nil {
		return false, err
	}
	headNumber, ok := new(big.Int).SetString(strings.TrimPrefix(head.String(), "0x"), 16)
	if !ok {
		return false, errors.Newf("malformed head block number '%s'", head.String())
	}
	txBlock, ok := new(big.Int).SetString(strings.TrimPrefix(blockNumberHex, "0x"), 16)
	if !ok {
		return false, errors.Newf("malformed receipt block number '%s'", blockNumberHex)
	}

	confirmations := new(big.Int).Sub(headNumber, txBlock)
	return confirmations.Cmp(big.NewInt(v.minConfirmations-1)) >= 0, nil
}

func (v EvmVerifier) rpcCall(ctx context.Context, method string, params []any) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "can't encode rpc request")
	}

	body, err := retry.DoWithData(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.rpcUrl, bytes.NewReader(payload))
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := v.client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "rpc call %s failed", method)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, errors.Wrap(models.ServiceUnavailableError,
				fmt.Sprintf("node returned status %d for %s", resp.StatusCode, method))
		}
		return io.ReadAll(resp.Body)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return gjson.Result{}, err
	}

	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() {
		return gjson.Result{}, errors.Newf("rpc call %s failed: %s", method, rpcErr.Get("message").String())
	}
	return gjson.GetBytes(body, "result"), nil
}

// addressFromTopic extracts the 20-byte address from a 32-byte indexed topic.
func addressFromTopic(topic string) string {
	hex := strings.TrimPrefix(topic, "0x")
	if len(hex) < 40 {
		return "0x" + hex
	}
	return "0x" + hex[len(hex)-40:]
}
