package server

import (
	"io"
	"net/http"

	"github.com/authorstack/authorstack/internal/webhook"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// HandleStripeWebhook rejects unsigned deliveries before reading the body.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader(webhook.SignatureHeader)
	if signature == "" {
		AbortWithError(c, webhook.ErrMissingSignature)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ack, err := s.webhooks.Receive(c.Request.Context(), signature, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}
