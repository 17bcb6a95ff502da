package api

import (
	"net/http"

	limits "github.com/gin-contrib/size"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	timeout "github.com/vearne/gin-timeout"

	"github.com/parkhaus/parkhaus-backend/usecases"
)

const defaultMaxBodySize = 64 * 1024 // 64KB, gate payloads are tiny

func addRoutes(r *gin.Engine, conf Configuration, uc usecases.Usecases) {
	r.GET("/liveness", handleLivenessProbe)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	maxBodySize := conf.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	router := r.Group("/", limits.RequestSizeLimiter(maxBodySize))

	router.POST("/gate/entry", handleGateEntry(uc))
	// the exit path may call out to a ledger or the card processor; it gets
	// an explicit deadline instead of hanging a gate open
	router.POST("/gate/exit",
		timeout.Timeout(
			timeout.WithTimeout(conf.ExitTimeout),
			timeout.WithErrorHttpCode(http.StatusServiceUnavailable),
			timeout.WithDefaultMsg(`{"message":"exit processing timed out"}`),
		),
		handleGateExit(uc))

	router.GET("/sessions/:plate", handleGetActiveSession(uc))
	router.GET("/decisions/:decision_id", handleGetDecision(uc))

	router.GET("/settlements/pending", handleListPendingSettlements(uc))
	router.DELETE("/settlements/pending/:session_id", handleCancelPendingSettlement(uc))

	router.POST("/webhooks/card", handleCardWebhook(uc, conf.CardWebhookSecret))
}
