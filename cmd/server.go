package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/parkhaus/parkhaus-backend/api"
	"github.com/parkhaus/parkhaus-backend/infra"
	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases"
	"github.com/parkhaus/parkhaus-backend/usecases/pricing"
	"github.com/parkhaus/parkhaus-backend/usecases/settlement_watcher"
	"github.com/parkhaus/parkhaus-backend/utils"
)

func RunServer() error {
	// This is where we read the environment variables and set up the
	// configuration for the application.
	apiConfig := api.Configuration{
		Env:                 utils.GetEnv("ENV", "development"),
		AppName:             "parkhaus-backend",
		Port:                utils.GetRequiredEnv[string]("PORT"),
		RequestLoggingLevel: utils.GetEnv("REQUEST_LOGGING_LEVEL", "all"),
		MaxBodySize:         int64(utils.GetEnv("MAX_BODY_SIZE", 0)),
		ExitTimeout:         time.Duration(utils.GetEnv("EXIT_TIMEOUT_SECOND", 15)) * time.Second,
		DefaultTimeout:      time.Duration(utils.GetEnv("DEFAULT_TIMEOUT_SECOND", 5)) * time.Second,
		CardWebhookSecret:   utils.GetEnv("CARD_WEBHOOK_SECRET", ""),
	}
	railConfig := struct {
		xrplRpcUrl         string
		evmRpcUrl          string
		evmChainId         int
		evmConfirmations   int
		evmPollSeconds     int
		cardApiUrl         string
		cardApiKey         string
		entryLedgerUrl     string
		entryLedgerApiKey  string
		notifyWebhookUrl   string
		pendingTtlMinutes  int
		pruneEverySeconds  int
		defaultRiskScore   int
		policyDocumentPath string
		loggingFormat      string
	}{
		xrplRpcUrl:         utils.GetEnv("XRPL_RPC_URL", ""),
		evmRpcUrl:          utils.GetEnv("EVM_RPC_URL", ""),
		evmChainId:         utils.GetEnv("EVM_CHAIN_ID", 1),
		evmConfirmations:   utils.GetEnv("EVM_MIN_CONFIRMATIONS", 1),
		evmPollSeconds:     utils.GetEnv("EVM_POLL_INTERVAL_SECOND", 5),
		cardApiUrl:         utils.GetEnv("CARD_API_URL", ""),
		cardApiKey:         utils.GetEnv("CARD_API_KEY", ""),
		entryLedgerUrl:     utils.GetEnv("ENTRY_LEDGER_URL", ""),
		entryLedgerApiKey:  utils.GetEnv("ENTRY_LEDGER_API_KEY", ""),
		notifyWebhookUrl:   utils.GetEnv("NOTIFY_WEBHOOK_URL", ""),
		pendingTtlMinutes:  utils.GetEnv("PENDING_SETTLEMENT_TTL_MINUTE", 120),
		pruneEverySeconds:  utils.GetEnv("PENDING_PRUNE_INTERVAL_SECOND", 60),
		defaultRiskScore:   utils.GetEnv("DEFAULT_RISK_SCORE", 0),
		policyDocumentPath: utils.GetRequiredEnv[string]("POLICY_DOCUMENT_PATH"),
		loggingFormat:      utils.GetEnv("LOGGING_FORMAT", "text"),
	}

	logger := utils.NewLogger(railConfig.loggingFormat)
	ctx := utils.StoreLoggerInContext(context.Background(), logger)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewPostgresConnectionPool(utils.GetRequiredEnv[string]("PG_CONNECTION_STRING"))
	if err != nil {
		return err
	}
	defer pool.Close()

	policyBook, err := infra.LoadPolicyBook(railConfig.policyDocumentPath)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	evmVerifier := repositories.NewEvmVerifier(
		httpClient,
		railConfig.evmRpcUrl,
		int64(railConfig.evmChainId),
		tokenAssets(policyBook),
		int64(railConfig.evmConfirmations),
	)
	verifiers := repositories.NewRailVerifiers(
		repositories.NewXrplVerifier(httpClient, railConfig.xrplRpcUrl, models.RailXrplXrp),
		repositories.NewXrplVerifier(httpClient, railConfig.xrplRpcUrl, models.RailXrplIou),
		evmVerifier,
		repositories.NewCardVerifier(httpClient, railConfig.cardApiUrl, railConfig.cardApiKey),
	)

	registry := settlement_watcher.NewPendingRegistry(
		time.Duration(railConfig.pendingTtlMinutes) * time.Minute)

	uc := usecases.Usecases{
		Repositories:       repositories.ParkhausDbRepository{},
		ExecutorGetter:     repositories.NewExecutorGetter(pool),
		Lots:               policyBook,
		Verifiers:          verifiers,
		Converter:          pricing.NewStaticConverter(policyBook.Rates()),
		EntryLedger:        repositories.NewEntryLedgerRepository(httpClient, railConfig.entryLedgerUrl, railConfig.entryLedgerApiKey),
		Notifications:      repositories.NewNotificationRepository(httpClient, railConfig.notifyWebhookUrl),
		PendingSettlements: registry,
		Metrics:            usecases.NewMetrics(prometheus.DefaultRegisterer),
		RiskScorer:         usecases.StaticRiskScorer{Value: railConfig.defaultRiskScore},
	}

	router := api.InitRouter(apiConfig, logger)
	server := api.NewServer(router, apiConfig, uc, logger)

	// card and hosted settlements only arrive synchronously or by webhook;
	// the watcher observes the token chain
	var streams []settlement_watcher.TransferStream
	if railConfig.evmRpcUrl != "" {
		streams = append(streams, repositories.NewEvmTransferStream(
			evmVerifier, time.Duration(railConfig.evmPollSeconds)*time.Second))
	}
	watcher := settlement_watcher.NewWatcher(
		registry,
		streams,
		uc.NewSettlementUsecase(),
		time.Duration(railConfig.pruneEverySeconds)*time.Second,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.InfoContext(groupCtx, "starting server", "port", apiConfig.Port, "env", apiConfig.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	group.Go(func() error {
		err := watcher.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// tokenAssets collects the distinct token assets any lot offers, for the EVM
// verifier's contract allowlist.
func tokenAssets(book *infra.PolicyBook) []models.Asset {
	var out []models.Asset
	for _, lot := range book.Lots() {
		for _, asset := range lot.OfferedAssets {
			if asset.Kind == models.AssetKindToken && !models.AssetIn(asset, out) {
				out = append(out, asset)
			}
		}
	}
	return out
}
