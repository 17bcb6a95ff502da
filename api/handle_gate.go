package api

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/parkhaus/parkhaus-backend/dto"
	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/usecases"
)

func handleGateEntry(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var input dto.GateEntryRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, dto.APIErrorResponse{Message: err.Error()})
			return
		}

		usecase := uc.NewGateEntryUsecase()
		session, grant, err := usecase.OpenEntry(ctx, usecases.GateEntryInput{
			Plate:     input.Plate,
			LotId:     input.LotId,
			Geo:       input.Geo.Adapt(),
			RiskScore: input.RiskScore,
		})
		if presentError(c, err) {
			return
		}
		c.JSON(http.StatusCreated, dto.AdaptGateEntryResponse(session, grant))
	}
}

func handleGateExit(uc usecases.Usecases) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var input dto.GateExitRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, dto.APIErrorResponse{Message: err.Error()})
			return
		}

		proof, err := parsePaymentProof(c.GetHeader("X-Payment-Proof"))
		if presentError(c, err) {
			return
		}

		usecase := uc.NewGateExitUsecase()
		result, err := usecase.CloseOrPrice(ctx, usecases.GateExitInput{
			Plate:          input.Plate,
			LotId:          input.LotId,
			IdempotencyKey: c.GetHeader("Idempotency-Key"),
			Proof:          proof,
		})
		if presentError(c, err) {
			return
		}

		// raw bytes, not re-marshaled: idempotent replays must be
		// byte-identical to the original response
		c.Data(result.Status, "application/json", result.Body)
	}
}

// parsePaymentProof reads the "rail:reference" proof header.
func parsePaymentProof(header string) (*models.SettlementProof, error) {
	if header == "" {
		return nil, nil
	}
	railPart, reference, found := strings.Cut(header, ":")
	if !found || reference == "" {
		return nil, errors.Wrap(models.BadParameterError,
			"payment proof must be formatted as rail:reference")
	}
	rail, ok := models.RailFrom(railPart)
	if !ok {
		return nil, errors.Wrapf(models.ErrUnknownRail, "rail %s", railPart)
	}
	if !validProofReference(rail, reference) {
		return nil, errors.Wrapf(models.BadParameterError,
			"malformed %s transaction reference", rail)
	}
	return &models.SettlementProof{Rail: rail, Reference: reference}, nil
}

// validProofReference rejects obviously malformed references before anything
// is sent to an RPC node: ledger tx hashes are 64 hex characters, EVM hashes
// the same with a 0x prefix. Processor references have no fixed shape.
func validProofReference(rail models.Rail, reference string) bool {
	switch rail {
	case models.RailXrplXrp, models.RailXrplIou:
		return len(reference) == 64 && isHex(reference)
	case models.RailEvmToken:
		return len(reference) == 66 && strings.HasPrefix(reference, "0x") && isHex(reference[2:])
	default:
		return true
	}
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
