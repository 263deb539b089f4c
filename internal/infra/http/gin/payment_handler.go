package ginserver

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	paymentsapp "villabook/internal/app/handlers/payments"
	"villabook/internal/infra/gateway"
)

const (
	maxWebhookBody        = 1 << 20
	stripeSignatureHeader = "Stripe-Signature"
)

type PaymentHTTP interface {
	Notification(c *gin.Context)
	StripeWebhook(c *gin.Context)
}

// PaymentHandler receives gateway callbacks. Both routes are public; payloads are
// authenticated by their signatures.
type PaymentHandler struct {
	Commands commands.Bus
	// Provider names the decoder used for the generic notification route.
	Provider string
	Logger   *slog.Logger
}

func (h PaymentHandler) Notification(c *gin.Context) {
	h.reconcile(c, h.Provider, "")
}

func (h PaymentHandler) StripeWebhook(c *gin.Context) {
	h.reconcile(c, gateway.ProviderStripe, c.GetHeader(stripeSignatureHeader))
}

func (h PaymentHandler) reconcile(c *gin.Context, provider, signature string) {
	if h.Commands == nil || provider == "" {
		unavailable(c)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, h.Logger, apperr.Validation("invalid_body", err))
		return
	}
	result, err := commands.Dispatch[paymentsapp.ReconcileCommand, dto.ReconcileResult](c.Request.Context(), h.Commands, paymentsapp.ReconcileCommand{
		Provider:    provider,
		Payload:     payload,
		Signature:   signature,
		ContentType: c.ContentType(),
		ReceivedAt:  time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

var _ PaymentHTTP = PaymentHandler{}
