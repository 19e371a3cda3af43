package mysql

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewOrderRepository(db *gorm.DB, logger *zap.Logger) repository.OrderRepository {
	return &orderRepo{db: db, logger: logger.Named("order-repo")}
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	if len(order.Items) == 0 {
		return errors.New("order has no items")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextOrderNumber(tx, order.TenantID)
		if err != nil {
			return fmt.Errorf("assign order number: %w", err)
		}
		order.OrderNumber = number

		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			order.Items[i].OrderID = order.ID
			order.Items[i].Position = i + 1
		}
		if err := tx.Create(&order.Items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("create order failed",
			zap.String("tenant_id", order.TenantID),
			zap.String("order_id", order.ID),
			zap.Error(err))
		return err
	}

	r.logger.Debug("order saved",
		zap.String("tenant_id", order.TenantID),
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)))
	return nil
}

// nextOrderNumber bumps the tenant's sequence row. The UPDATE holds the row
// lock until the surrounding transaction ends, so concurrent checkouts for
// one tenant get distinct numbers.
func nextOrderNumber(tx *gorm.DB, tenantID string) (int64, error) {
	seed := domain.OrderSequence{TenantID: tenantID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	res := tx.Model(&domain.OrderSequence{}).
		Where("tenant_id = ?", tenantID).
		Update("last_number", gorm.Expr("last_number + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("sequence row for tenant %q not updated", tenantID)
	}

	var seq domain.OrderSequence
	if err := tx.Where("tenant_id = ?", tenantID).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastNumber, nil
}

func (r *orderRepo) FindByID(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("find order failed", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) SetPreferenceRef(ctx context.Context, corr *domain.GatewayCorrelation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND tenant_id = ? AND gateway_preference_ref IS NULL", corr.OrderID, corr.TenantID).
			Update("gateway_preference_ref", corr.PreferenceRef)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var current domain.Order
			err := tx.Select("id", "gateway_preference_ref").
				Where("id = ? AND tenant_id = ?", corr.OrderID, corr.TenantID).
				First(&current).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			if err != nil {
				return err
			}
			if current.GatewayPreferenceRef == nil || *current.GatewayPreferenceRef != corr.PreferenceRef {
				r.logger.Error("preference ref conflict",
					zap.String("order_id", corr.OrderID),
					zap.String("new_ref", corr.PreferenceRef))
				return domain.ErrPreferenceConflict
			}
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(corr).Error
	})
}

func (r *orderRepo) ApplyStatusUpdate(ctx context.Context, tenantID, orderID string, upd domain.StatusUpdate) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND tenant_id = ? AND status = ?", orderID, tenantID, domain.StatusPending).
		Updates(map[string]any{
			"status":              upd.Status,
			"payment_status":      upd.PaymentStatus,
			"gateway_payment_ref": upd.PaymentRef,
			"version":             gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		r.logger.Error("status update failed", zap.String("order_id", orderID), zap.Error(res.Error))
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
