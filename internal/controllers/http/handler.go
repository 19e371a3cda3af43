package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra/mongo"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const notificationHistoryLimit = 50

type OrderService interface {
	CreateOrder(ctx context.Context, in services.CreateOrderInput) (*domain.Order, error)
	InitiatePayment(ctx context.Context, tenantID, orderID string) (*services.PaymentInitiation, error)
	GetOrderStatus(ctx context.Context, tenantID, id string) (*services.OrderStatusView, error)
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, n services.Notification) (*services.ReconcileResult, error)
}

var (
	_ OrderService      = (*services.OrderService)(nil)
	_ PaymentReconciler = (*services.Reconciler)(nil)
)

type Handler struct {
	service    OrderService
	reconciler PaymentReconciler
	auditor    mongo.Auditor
	tenants    TenantResolver
	logger     *zap.Logger
}

func NewHandler(svc OrderService, rec PaymentReconciler, auditor mongo.Auditor, tenants TenantResolver, logger *zap.Logger) *Handler {
	if auditor == nil {
		auditor = mongo.NoopAuditor{}
	}
	if tenants == nil {
		tenants = HeaderTenantResolver{}
	}
	return &Handler{
		service:    svc,
		reconciler: rec,
		auditor:    auditor,
		tenants:    tenants,
		logger:     logger.Named("http"),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	orders := r.Group("/orders", requireTenant(h.tenants))
	orders.POST("", h.CreateOrder)
	orders.POST("/:id/payment", h.InitiatePayment)
	orders.GET("/:id/status", h.GetOrderStatus)
	orders.GET("/:id/notifications", h.ListNotifications)

	r.POST("/webhooks/payments", h.PaymentWebhook)
	r.GET("/webhooks/payments", h.PaymentWebhook)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.toInput(tenantFrom(c)))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newCreateOrderResponse(order))
}

func (h *Handler) InitiatePayment(c *gin.Context) {
	res, err := h.service.InitiatePayment(c.Request.Context(), tenantFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, InitiatePaymentResponse{PreferenceID: res.PreferenceID, RedirectURL: res.RedirectURL})
}

func (h *Handler) GetOrderStatus(c *gin.Context) {
	view, err := h.service.GetOrderStatus(c.Request.Context(), tenantFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := h.service.GetOrderStatus(ctx, tenantFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	records, err := h.auditor.ListByOrder(ctx, view.ID, notificationHistoryLimit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]NotificationResponse, 0, len(records))
	for _, rec := range records {
		if rec.TenantID != tenantFrom(c) {
			continue
		}
		out = append(out, NotificationResponse{
			EventType:     rec.EventType,
			PaymentID:     rec.PaymentID,
			GatewayStatus: rec.GatewayStatus,
			Outcome:       rec.Outcome,
			Detail:        rec.Detail,
			ReceivedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		vErr  *domain.ValidationError
		gwErr *domain.GatewayError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: vErr.Msg, Field: vErr.Field})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: domain.ErrGatewayNotConfigured.Error()})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment could not be started"})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrPreferenceConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
