package domain

import "time"

// TenantGatewayCredentials is the per-tenant payment gateway configuration.
type TenantGatewayCredentials struct {
	TenantID    string    `gorm:"primaryKey;type:varchar(64)"`
	Enabled     bool      `gorm:"not null;default:false"`
	AccessToken string    `gorm:"type:varchar(255)"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// GatewayCorrelation maps the token embedded in a preference's notification
// URL back to the tenant and order that created it.
type GatewayCorrelation struct {
	Token         string    `gorm:"primaryKey;type:varchar(36)"`
	PreferenceRef string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	TenantID      string    `gorm:"type:varchar(64);not null"`
	OrderID       string    `gorm:"type:varchar(36);not null;index"`
	RedirectURL   string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}
