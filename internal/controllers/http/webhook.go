package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"checkout-service/internal/domain"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type webhookBody struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// parseNotification reads the event type and payment id from the JSON body,
// falling back to the query string used by older notification formats.
func parseNotification(r *http.Request) services.Notification {
	q := r.URL.Query()
	n := services.Notification{Token: q.Get("token")}

	if r.Body != nil {
		raw, _ := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		var body webhookBody
		if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
			n.Type = firstNonEmpty(body.Type, body.Topic)
			n.PaymentID = rawID(body.Data.ID)
		}
	}

	if n.Type == "" {
		n.Type = firstNonEmpty(q.Get("type"), q.Get("topic"))
	}
	if n.PaymentID == "" {
		n.PaymentID = firstNonEmpty(q.Get("data.id"), q.Get("id"))
	}
	n.PaymentID = strings.TrimSpace(n.PaymentID)
	return n
}

// rawID accepts ids sent either as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// PaymentWebhook acknowledges gateway notifications. Anything that can never
// succeed is acknowledged with 200 so the gateway stops redelivering it.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	n := parseNotification(c.Request)

	res, err := h.reconciler.Reconcile(c.Request.Context(), n)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": res.Outcome})
	case errors.Is(err, domain.ErrReconciliationSkipped):
		h.logger.Info("notification skipped",
			zap.String("type", n.Type),
			zap.String("payment_id", n.PaymentID),
			zap.String("reason", err.Error()))
		c.JSON(http.StatusOK, gin.H{"status": services.OutcomeSkipped})
	case errors.Is(err, domain.ErrTransientFailure):
		h.logger.Warn("notification deferred",
			zap.String("payment_id", n.PaymentID),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "temporarily unavailable"})
	default:
		_ = c.Error(err)
		h.logger.Error("notification failed",
			zap.String("payment_id", n.PaymentID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
