package repositories

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/utils"
)

// EvmTransferStream polls eth_getLogs for Transfer events on the configured
// token contracts and feeds them to the settlement watcher. Polling instead
// of a websocket subscription: the poll cursor makes restarts and transient
// node failures trivially safe, and gate-exit latency tolerates seconds.
type EvmTransferStream struct {
	verifier     EvmVerifier
	contracts    []string
	pollInterval time.Duration

	// lastBlock is the poll cursor; only the polling goroutine touches it.
	lastBlock *big.Int
}

func NewEvmTransferStream(verifier EvmVerifier, pollInterval time.Duration) *EvmTransferStream {
	contracts := make([]string, 0, len(verifier.knownAssets))
	for _, asset := range verifier.knownAssets {
		if asset.Kind == models.AssetKindToken && asset.ChainId == verifier.chainId {
			contracts = append(contracts, asset.Contract)
		}
	}
	return &EvmTransferStream{
		verifier:     verifier,
		contracts:    contracts,
		pollInterval: pollInterval,
	}
}

func (s *EvmTransferStream) Rail() models.Rail {
	return models.RailEvmToken
}

func (s *EvmTransferStream) Transfers(ctx context.Context) (<-chan models.TransferEvent, error) {
	head, err := s.headBlock(ctx)
	if err != nil {
		return nil, err
	}
	s.lastBlock = head

	out := make(chan models.TransferEvent)
	go s.poll(ctx, out)
	return out, nil
}

func (s *EvmTransferStream) poll(ctx context.Context, out chan<- models.TransferEvent) {
	defer close(out)
	logger := utils.LoggerFromContext(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := s.fetchNewTransfers(ctx)
			if err != nil {
				// keep the cursor and retry on the next tick
				logger.WarnContext(ctx, "transfer log poll failed", "error", err)
				continue
			}
			for _, event := range events {
				select {
				case <-ctx.Done():
					return
				case out <- event:
				}
			}
		}
	}
}

func (s *EvmTransferStream) fetchNewTransfers(ctx context.Context) ([]models.TransferEvent, error) {
	head, err := s.headBlock(ctx)
	if err != nil {
		return nil, err
	}
	if head.Cmp(s.lastBlock) <= 0 {
		return nil, nil
	}

	from := new(big.Int).Add(s.lastBlock, big.NewInt(1))
	logs, err := s.verifier.rpcCall(ctx, "eth_getLogs", []any{map[string]any{
		"fromBlock": "0x" + from.Text(16),
		"toBlock":   "0x" + head.Text(16),
		"address":   s.contracts,
		"topics":    []any{erc20TransferTopic},
	}})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var events []models.TransferEvent
	for _, log := range logs.Array() {
		topics := log.Get("topics").Array()
		if len(topics) != 3 {
			continue
		}
		asset, known := s.verifier.assetForContract(log.Get("address").String())
		if !known {
			continue
		}
		amount, ok := new(big.Int).SetString(strings.TrimPrefix(log.Get("data").String(), "0x"), 16)
		if !ok {
			continue
		}
		events = append(events, models.TransferEvent{
			Rail:         models.RailEvmToken,
			Asset:        &asset,
			TxHash:       log.Get("transactionHash").String(),
			From:         addressFromTopic(topics[1].String()),
			To:           addressFromTopic(topics[2].String()),
			AmountAtomic: amount.String(),
			ObservedAt:   now,
		})
	}

	s.lastBlock = head
	return events, nil
}

func (s *EvmTransferStream) headBlock(ctx context.Context) (*big.Int, error) {
	head, err := s.verifier.rpcCall(ctx, "eth_blockNumber", []any{})
	if err != nil {
		return nil, err
	}
	number, ok := new(big.Int).SetString(strings.TrimPrefix(head.String(), "0x"), 16)
	if !ok {
		return nil, errors.Newf("malformed head block number '%s'", head.String())
	}
	return number, nil
}
