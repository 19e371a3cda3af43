package mysql

import (
	"context"
	"errors"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
)

type correlationRepo struct {
	db *gorm.DB
}

func NewCorrelationRepository(db *gorm.DB) repository.CorrelationRepository {
	return &correlationRepo{db: db}
}

func (r *correlationRepo) FindByToken(ctx context.Context, token string) (*domain.GatewayCorrelation, error) {
	return r.first(ctx, "token = ?", token)
}

func (r *correlationRepo) FindByOrderID(ctx context.Context, tenantID, orderID string) (*domain.GatewayCorrelation, error) {
	return r.first(ctx, "tenant_id = ? AND order_id = ?", tenantID, orderID)
}

func (r *correlationRepo) first(ctx context.Context, query string, args ...any) (*domain.GatewayCorrelation, error) {
	var c domain.GatewayCorrelation
	if err := r.db.WithContext(ctx).Where(query, args...).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
