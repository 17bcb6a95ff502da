package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/parkhaus/parkhaus-backend/dto"
	"github.com/parkhaus/parkhaus-backend/usecases"
)

// handleCardWebhook receives card-processor payment notifications. The body
// is authenticated with the shared-secret HMAC before anything is parsed; the
// payment itself is then re-read from the processor, never trusted from the
// webhook payload.
func handleCardWebhook(uc usecases.Usecases, secret string) func(c *gin.Context) {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.APIErrorResponse{Message: "can't read body"})
			return
		}
		if !validSignature(body, c.GetHeader("X-Webhook-Signature"), secret) {
			c.JSON(http.StatusUnauthorized, dto.APIErrorResponse{Message: "invalid signature"})
			return
		}

		if gjson.GetBytes(body, "type").String() != "payment.succeeded" {
			c.Status(http.StatusNoContent)
			return
		}
		sessionId := gjson.GetBytes(body, "data.metadata.session_id").String()
		reference := gjson.GetBytes(body, "data.id").String()
		if sessionId == "" || reference == "" {
			c.JSON(http.StatusBadRequest, dto.APIErrorResponse{
				Message: "webhook payload is missing the session or payment reference",
			})
			return
		}

		usecase := uc.NewCardWebhookUsecase()
		if err := usecase.ProcessCardSettlement(ctx, sessionId, reference); presentError(c, err) {
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func validSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
