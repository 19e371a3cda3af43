package http

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/services"

	"github.com/shopspring/decimal"
)

type CustomerRequest struct {
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	Email        string `json:"email" binding:"omitempty,email"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

type OrderItemRequest struct {
	ProductID uint64          `json:"productId" binding:"required"`
	Quantity  int64           `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CreateOrderRequest struct {
	Customer      CustomerRequest    `json:"customer"`
	PaymentMethod string             `json:"paymentMethod" binding:"required"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryFee   decimal.Decimal    `json:"deliveryFee"`
	Subtotal      *decimal.Decimal   `json:"subtotal"`
	Total         *decimal.Decimal   `json:"total"`
	Notes         string             `json:"notes" binding:"max=500"`
}

func (r CreateOrderRequest) toInput(tenantID string) services.CreateOrderInput {
	lines := make([]services.CartLine, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, services.CartLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return services.CreateOrderInput{
		TenantID: tenantID,
		Customer: domain.CustomerSnapshot{
			Name:         r.Customer.Name,
			Phone:        r.Customer.Phone,
			Email:        r.Customer.Email,
			Street:       r.Customer.Street,
			Number:       r.Customer.Number,
			Complement:   r.Customer.Complement,
			Neighborhood: r.Customer.Neighborhood,
			City:         r.Customer.City,
			State:        r.Customer.State,
			ZipCode:      r.Customer.ZipCode,
		},
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		Lines:         lines,
		DeliveryFee:   r.DeliveryFee,
		Subtotal:      r.Subtotal,
		Total:         r.Total,
		Notes:         r.Notes,
	}
}

type CreateOrderResponse struct {
	ID          string             `json:"id"`
	OrderNumber int64              `json:"orderNumber"`
	Status      domain.OrderStatus `json:"status"`
	Subtotal    string             `json:"subtotal"`
	DeliveryFee string             `json:"deliveryFee"`
	Total       string             `json:"total"`
}

func newCreateOrderResponse(o *domain.Order) CreateOrderResponse {
	return CreateOrderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Subtotal:    o.Subtotal.StringFixed(2),
		DeliveryFee: o.DeliveryFee.StringFixed(2),
		Total:       o.Total.StringFixed(2),
	}
}

type InitiatePaymentResponse struct {
	PreferenceID string `json:"preferenceId"`
	RedirectURL  string `json:"redirectUrl"`
}

type NotificationResponse struct {
	EventType     string `json:"eventType"`
	PaymentID     string `json:"paymentId"`
	GatewayStatus string `json:"gatewayStatus,omitempty"`
	Outcome       string `json:"outcome"`
	Detail        string `json:"detail,omitempty"`
	ReceivedAt    string `json:"receivedAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
