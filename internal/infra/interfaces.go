package infra

import "context"

type ProductClientInterface interface {
	GetProductById(ctx context.Context, tenantID string, id uint64) (*ProductInfo, error)
}

type GatewayClientInterface interface {
	CreatePreference(ctx context.Context, accessToken string, req PreferenceRequest) (*Preference, error)
	FetchPayment(ctx context.Context, accessToken, paymentID string) (*Payment, error)
}

var (
	_ ProductClientInterface = (*ProductClient)(nil)
	_ GatewayClientInterface = (*GatewayClient)(nil)
)
