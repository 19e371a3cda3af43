package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated        = "order.created"
	EventOrderPaymentUpdated = "order.payment_updated"
)

type OrderCreatedEvent struct {
	OrderID       string          `json:"orderId"`
	TenantID      string          `json:"tenantId"`
	OrderNumber   int64           `json:"orderNumber"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type OrderPaymentUpdatedEvent struct {
	OrderID       string      `json:"orderId"`
	TenantID      string      `json:"tenantId"`
	Status        OrderStatus `json:"status"`
	PaymentStatus string      `json:"paymentStatus"`
	PaymentRef    string      `json:"paymentRef"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
