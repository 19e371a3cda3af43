package mocks

import (
	"context"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/mongo"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockCorrelationRepository struct {
	mock.Mock
}

type MockCredentialRepository struct {
	mock.Mock
}

type MockCredentialResolver struct {
	mock.Mock
}

type MockProductClient struct {
	mock.Mock
}

type MockGatewayClient struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message any) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockProductClient) GetProductById(ctx context.Context, tenantID string, productId uint64) (*infra.ProductInfo, error) {
	args := m.Called(ctx, tenantID, productId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockGatewayClient) CreatePreference(ctx context.Context, accessToken string, req infra.PreferenceRequest) (*infra.Preference, error) {
	args := m.Called(ctx, accessToken, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.Preference), args.Error(1)
}

func (m *MockGatewayClient) FetchPayment(ctx context.Context, accessToken, paymentID string) (*infra.Payment, error) {
	args := m.Called(ctx, accessToken, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.Payment), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) SetPreferenceRef(ctx context.Context, corr *domain.GatewayCorrelation) error {
	args := m.Called(ctx, corr)
	return args.Error(0)
}

func (m *MockOrderRepository) ApplyStatusUpdate(ctx context.Context, tenantID, orderID string, upd domain.StatusUpdate) (bool, error) {
	args := m.Called(ctx, tenantID, orderID, upd)
	return args.Bool(0), args.Error(1)
}

func (m *MockCorrelationRepository) FindByToken(ctx context.Context, token string) (*domain.GatewayCorrelation, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayCorrelation), args.Error(1)
}

func (m *MockCorrelationRepository) FindByOrderID(ctx context.Context, tenantID, orderID string) (*domain.GatewayCorrelation, error) {
	args := m.Called(ctx, tenantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayCorrelation), args.Error(1)
}

func (m *MockCredentialRepository) FindByTenant(ctx context.Context, tenantID string) (*domain.TenantGatewayCredentials, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantGatewayCredentials), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, creds *domain.TenantGatewayCredentials) error {
	args := m.Called(ctx, creds)
	return args.Error(0)
}

func (m *MockCredentialResolver) Resolve(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockAuditor) Record(ctx context.Context, rec *mongo.NotificationRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockAuditor) ListByOrder(ctx context.Context, orderID string, limit int64) ([]*mongo.NotificationRecord, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mongo.NotificationRecord), args.Error(1)
}
