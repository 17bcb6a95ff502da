package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parkhaus/parkhaus-backend/dto"
	"github.com/parkhaus/parkhaus-backend/usecases"
)

func handleGetActiveSession(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		usecase := uc.NewQueryUsecase()
		session, err := usecase.GetActiveSession(ctx, c.Param("plate"))
		if presentError(c, err) {
			return
		}
		c.JSON(http.StatusOK, dto.AdaptSession(session))
	}
}

func handleGetDecision(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		usecase := uc.NewQueryUsecase()
		decision, err := usecase.GetDecision(ctx, c.Param("decision_id"))
		if presentError(c, err) {
			return
		}
		c.JSON(http.StatusOK, dto.AdaptPaymentPolicyDecision(decision))
	}
}
