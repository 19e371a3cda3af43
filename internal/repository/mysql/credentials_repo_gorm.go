package mysql

import (
	"context"
	"errors"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type credentialRepo struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) repository.CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) FindByTenant(ctx context.Context, tenantID string) (*domain.TenantGatewayCredentials, error) {
	var c domain.TenantGatewayCredentials
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *credentialRepo) Save(ctx context.Context, creds *domain.TenantGatewayCredentials) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "access_token", "updated_at"}),
	}).Create(creds).Error
}
