// Package payment receives payment notifications from external systems and
// records them against invoices.
package payment

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/invoice"
	"github.com/noah-isme/invoice-manager/internal/money"
)

const defaultReplayTTL = 24 * time.Hour

// Recorder records a payment addressed by invoice number.
type Recorder interface {
	RecordPaymentByNumber(ctx context.Context, number string, in invoice.PaymentInput, source string) (invoice.View, invoice.PaymentView, error)
}

// Webhook handles POST /api/v1/webhooks/payment.
type Webhook struct {
	Invoices  Recorder
	Replay    ReplayGuard
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

// Notification is the inbound payload.
type Notification struct {
	InvoiceNumber     string       `json:"invoice_number" validate:"required,max=64"`
	Amount            money.Amount `json:"amount"`
	PaymentDate       *common.Date `json:"payment_date"`
	Method            string       `json:"method" validate:"max=64"`
	ExternalReference string       `json:"external_reference" validate:"max=200"`
}

func replayKey(n Notification) string {
	return "payment-webhook:" + common.Sha256Hex(strings.TrimSpace(n.InvoiceNumber)+"|"+strings.TrimSpace(n.ExternalReference))
}

// Handle records the payment and responds with the updated invoice.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Invoices == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment webhook unavailable", nil)
		return
	}
	var n Notification
	if err := common.DecodeJSON(r, &n); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(n); err != nil {
		common.WriteError(w, err)
		return
	}
	ctx := r.Context()

	key := ""
	if h.Replay != nil && strings.TrimSpace(n.ExternalReference) != "" {
		key = replayKey(n)
		ttl := h.ReplayTTL
		if ttl <= 0 {
			ttl = defaultReplayTTL
		}
		ok, err := h.Replay.Acquire(ctx, key, ttl)
		if err != nil {
			h.Logger.Error().Err(err).Msg("payment replay guard unavailable")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay guard unavailable", nil)
			return
		}
		if !ok {
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate payment notification", nil)
			return
		}
	}

	view, payment, err := h.Invoices.RecordPaymentByNumber(ctx, n.InvoiceNumber, invoice.PaymentInput{
		Amount:            n.Amount,
		PaymentDate:       n.PaymentDate,
		Method:            n.Method,
		ExternalReference: n.ExternalReference,
	}, invoice.SourceWebhook)
	if err != nil {
		if key != "" {
			if relErr := h.Replay.Release(context.WithoutCancel(ctx), key); relErr != nil {
				h.Logger.Warn().Err(relErr).Msg("release payment replay key")
			}
		}
		common.WriteError(w, err)
		return
	}
	h.Logger.Info().
		Str("invoice_number", view.InvoiceNumber).
		Int64("payment_id", payment.ID).
		Str("status", view.Status).
		Msg("payment webhook recorded")
	common.JSON(w, http.StatusCreated, map[string]any{"data": view, "payment": payment})
}
