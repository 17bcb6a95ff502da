package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parkhaus/parkhaus-backend/dto"
	"github.com/parkhaus/parkhaus-backend/usecases"
)

func handleListPendingSettlements(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		usecase := uc.NewQueryUsecase()

		pending := usecase.ListPendingSettlements()
		out := make([]dto.PendingSettlement, len(pending))
		for i, p := range pending {
			out[i] = dto.AdaptPendingSettlement(p)
		}
		c.JSON(http.StatusOK, gin.H{"pending_settlements": out})
	}
}

func handleCancelPendingSettlement(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		usecase := uc.NewQueryUsecase()

		if !usecase.CancelPendingSettlement(c.Param("session_id")) {
			c.JSON(http.StatusNotFound, dto.APIErrorResponse{
				Message: "no pending settlement for this session",
			})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
