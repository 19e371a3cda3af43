package services

import (
	"context"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"

	"github.com/shopspring/decimal"
)

func CreateMockOrder(id, tenantID string, method domain.PaymentMethod, status domain.OrderStatus) *domain.Order {
	price := decimal.RequireFromString("25.50")
	return &domain.Order{
		ID:          id,
		TenantID:    tenantID,
		OrderNumber: 1,
		Customer: domain.CustomerSnapshot{
			Name:  "Ana Souza",
			Phone: "+55 11 99999-0000",
			Email: "ana@example.com",
		},
		Items: []domain.OrderItem{{
			OrderID:     id,
			ProductID:   TestProductID,
			ProductName: TestProductName,
			UnitPrice:   price,
			Quantity:    2,
			TotalPrice:  price.Mul(decimal.NewFromInt(2)),
		}},
		Subtotal:      decimal.RequireFromString("51.00"),
		DeliveryFee:   decimal.RequireFromString("5.00"),
		Total:         decimal.RequireFromString("56.00"),
		PaymentMethod: method,
		Status:        status,
		CreatedAt:     time.Now(),
	}
}

func CreateMockProduct(id uint64, name string, price string, stock int64) *infra.ProductInfo {
	return &infra.ProductInfo{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func CreateMockCorrelation(token, tenantID, orderID string) *domain.GatewayCorrelation {
	return &domain.GatewayCorrelation{
		Token:         token,
		PreferenceRef: "pref-" + orderID,
		TenantID:      tenantID,
		OrderID:       orderID,
		RedirectURL:   "https://gateway.test/checkout/pref-" + orderID,
	}
}

// capturePublisher hands published patterns to a channel so async
// publishing can be awaited.
type capturePublisher struct {
	ch chan string
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{ch: make(chan string, 16)}
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ any) error {
	p.ch <- topic
	return nil
}

const (
	TestTenantID     = "tenant-a"
	TestOtherTenant  = "tenant-b"
	TestOrderID      = "7d3f8f4e-0b7a-4c56-9a57-6a0f0c9e1d11"
	TestToken        = "corr-token-1"
	TestPaymentID    = "pay-1001"
	TestAccessToken  = "APP_USR-tenant-a"
	TestProductID    = uint64(1)
	TestProductName  = "Margherita"
	TestProductPrice = "25.50"
	TestProductStock = int64(5)
)
