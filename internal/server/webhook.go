package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/launchkitlabs/launchkit/internal/payment/domain"
)

// @Summary      Ingest Payment Webhook
// @Description  Verify and process a signed payment provider event
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Webhook-Signature  header  string  true  "Signature header"
// @Success      200  {object}  DataResponse
// @Router       /webhooks/payment [post]
func (s *Server) IngestPaymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil || len(payload) == 0 {
		AbortWithError(c, newValidationError("body", "invalid_payload", "invalid payload"))
		return
	}

	err = s.webhookSvc.Ingest(c.Request.Context(), payload, c.Request.Header)
	switch {
	case err == nil:
		// Duplicates and ignored types also land here: the provider only
		// needs to know the delivery was accepted.
		respondData(c, gin.H{"received": true})
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "invalid_signature",
			"message": "webhook signature verification failed",
		}})
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "invalid_payload",
			"message": "webhook payload could not be parsed",
		}})
	default:
		// 500 tells the provider to retry the delivery later.
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		}})
	}
}
