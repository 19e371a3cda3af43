package mysql

import (
	"fmt"

	"checkout-service/internal/config"
	"checkout-service/internal/domain"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func NewMySQL(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table owned by this service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderSequence{},
		&domain.TenantGatewayCredentials{},
		&domain.GatewayCorrelation{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
