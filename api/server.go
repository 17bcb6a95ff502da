package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parkhaus/parkhaus-backend/api/middleware"
	"github.com/parkhaus/parkhaus-backend/usecases"
	"github.com/parkhaus/parkhaus-backend/utils"
)

func InitRouter(conf Configuration, logger *slog.Logger) *gin.Engine {
	if conf.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if conf.RequestLoggingLevel != "none" {
		r.Use(middleware.NewLogging(logger, middleware.WithIgnorePath([]string{"/liveness", "/metrics"})))
	}
	r.Use(utils.StoreLoggerInContextMiddleware(logger))
	return r
}

func NewServer(
	router *gin.Engine,
	conf Configuration,
	uc usecases.Usecases,
	logger *slog.Logger,
) *http.Server {
	addRoutes(router, conf, uc)

	// headroom over the slowest route so our own timeouts fire first
	maxTimeout := max(conf.ExitTimeout, conf.DefaultTimeout) + 5*time.Second

	return &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%s", conf.Port),
		WriteTimeout: maxTimeout,
		ReadTimeout:  maxTimeout,
		IdleTimeout:  maxTimeout,
		Handler:      router,
	}
}
