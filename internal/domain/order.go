package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCancelled OrderStatus = "cancelled"
	StatusPreparing OrderStatus = "preparing"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
)

// IsPaymentFinal reports whether reconciliation may no longer touch the order.
// Fulfillment states are only reachable after confirmation, so they count too.
func (s OrderStatus) IsPaymentFinal() bool {
	return s != StatusPending
}

type PaymentMethod string

const (
	PaymentGateway        PaymentMethod = "gateway"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCardOnDelivery PaymentMethod = "card_on_delivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentGateway, PaymentCashOnDelivery, PaymentCardOnDelivery:
		return true
	}
	return false
}

// CustomerSnapshot is copied by value into the order at checkout time.
type CustomerSnapshot struct {
	Name         string `json:"name" gorm:"size:120;not null"`
	Phone        string `json:"phone" gorm:"size:40;not null"`
	Email        string `json:"email,omitempty" gorm:"size:160"`
	Street       string `json:"street,omitempty" gorm:"size:160"`
	Number       string `json:"number,omitempty" gorm:"size:20"`
	Complement   string `json:"complement,omitempty" gorm:"size:120"`
	Neighborhood string `json:"neighborhood,omitempty" gorm:"size:120"`
	City         string `json:"city,omitempty" gorm:"size:120"`
	State        string `json:"state,omitempty" gorm:"size:60"`
	ZipCode      string `json:"zipCode,omitempty" gorm:"size:20"`
}

type Order struct {
	ID                   string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID             string           `json:"tenantId" gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_tenant_number,priority:1"`
	OrderNumber          int64            `json:"orderNumber" gorm:"not null;uniqueIndex:idx_orders_tenant_number,priority:2"`
	Customer             CustomerSnapshot `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`
	Items                []OrderItem      `json:"items" gorm:"foreignKey:OrderID"`
	Subtotal             decimal.Decimal  `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	DeliveryFee          decimal.Decimal  `json:"deliveryFee" gorm:"type:decimal(12,2);not null"`
	Total                decimal.Decimal  `json:"total" gorm:"type:decimal(12,2);not null"`
	PaymentMethod        PaymentMethod    `json:"paymentMethod" gorm:"type:varchar(32);not null"`
	Status               OrderStatus      `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentStatus        string           `json:"paymentStatus" gorm:"type:varchar(32)"`
	GatewayPreferenceRef *string          `json:"gatewayPreferenceRef,omitempty" gorm:"type:varchar(128)"`
	GatewayPaymentRef    *string          `json:"gatewayPaymentRef,omitempty" gorm:"type:varchar(128)"`
	Notes                string           `json:"notes,omitempty" gorm:"type:text"`
	Version              int64            `json:"-" gorm:"not null;default:0"`
	CreatedAt            time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt            time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderItem holds the product name and price as they were when the order was placed.
type OrderItem struct {
	ID          uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID     string          `json:"orderId" gorm:"type:varchar(36);not null;index"`
	Position    int             `json:"position" gorm:"not null"`
	ProductID   uint64          `json:"productId" gorm:"not null"`
	ProductName string          `json:"productName" gorm:"size:200;not null"`
	UnitPrice   decimal.Decimal `json:"unitPrice" gorm:"type:decimal(12,2);not null"`
	Quantity    int64           `json:"quantity" gorm:"not null"`
	TotalPrice  decimal.Decimal `json:"totalPrice" gorm:"type:decimal(12,2);not null"`
}

// OrderSequence backs the per-tenant order number.
type OrderSequence struct {
	TenantID   string `gorm:"primaryKey;type:varchar(64)"`
	LastNumber int64  `gorm:"not null;default:0"`
}

// StatusUpdate is what reconciliation writes once a canonical payment has been mapped.
type StatusUpdate struct {
	Status        OrderStatus
	PaymentStatus string
	PaymentRef    string
}
