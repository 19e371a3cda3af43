package repository

import (
	"context"

	"checkout-service/internal/domain"
)

type OrderRepository interface {
	// Create assigns the next order number for the tenant and writes the
	// order with all of its items in one transaction.
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, tenantID, id string) (*domain.Order, error)
	// SetPreferenceRef records the gateway preference and its correlation row.
	// Setting the same ref again is a no-op; a different ref fails with
	// domain.ErrPreferenceConflict.
	SetPreferenceRef(ctx context.Context, corr *domain.GatewayCorrelation) error
	// ApplyStatusUpdate writes the update only while the order is still
	// pending and reports whether a row changed.
	ApplyStatusUpdate(ctx context.Context, tenantID, orderID string, upd domain.StatusUpdate) (bool, error)
}

type CorrelationRepository interface {
	FindByToken(ctx context.Context, token string) (*domain.GatewayCorrelation, error)
	FindByOrderID(ctx context.Context, tenantID, orderID string) (*domain.GatewayCorrelation, error)
}

type CredentialRepository interface {
	FindByTenant(ctx context.Context, tenantID string) (*domain.TenantGatewayCredentials, error)
	Save(ctx context.Context, creds *domain.TenantGatewayCredentials) error
}
