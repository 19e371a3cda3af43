package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/mongo"
	"checkout-service/internal/infra/redislock"
	"checkout-service/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type reconcilerMocks struct {
	repo         *mocks.MockOrderRepository
	correlations *mocks.MockCorrelationRepository
	gateway      *mocks.MockGatewayClient
	credentials  *mocks.MockCredentialResolver
	auditor      *mocks.MockAuditor
}

func newReconcilerMocks() *reconcilerMocks {
	m := &reconcilerMocks{
		repo:         new(mocks.MockOrderRepository),
		correlations: new(mocks.MockCorrelationRepository),
		gateway:      new(mocks.MockGatewayClient),
		credentials:  new(mocks.MockCredentialResolver),
		auditor:      new(mocks.MockAuditor),
	}
	m.auditor.On("Record", mock.Anything, mock.AnythingOfType("*mongo.NotificationRecord")).Return(nil)
	return m
}

func (m *reconcilerMocks) reconciler(pub *capturePublisher) *Reconciler {
	deps := ReconcilerDeps{
		Orders:       m.repo,
		Correlations: m.correlations,
		Gateway:      m.gateway,
		Credentials:  m.credentials,
		Locker:       redislock.NewMemoryLocker(),
		Auditor:      m.auditor,
	}
	if pub != nil {
		deps.Publisher = pub
	}
	return NewReconciler(deps, ReconcileOptions{
		FetchAttempts:  2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

// resolvesOrder wires the lookups every notification for TestOrderID goes through.
func (m *reconcilerMocks) resolvesOrder() {
	m.correlations.On("FindByToken", mock.Anything, TestToken).
		Return(CreateMockCorrelation(TestToken, TestTenantID, TestOrderID), nil)
	m.credentials.On("Resolve", mock.Anything, TestTenantID).Return(TestAccessToken, nil)
}

func payment(status string) *infra.Payment {
	return &infra.Payment{ID: TestPaymentID, Status: status, ExternalReference: TestOrderID}
}

func paymentNotification() Notification {
	return Notification{Type: "payment", PaymentID: TestPaymentID, Token: TestToken}
}

func TestReconciler_Reconcile(t *testing.T) {
	tests := []struct {
		name            string
		notification    Notification
		setupMocks      func(*reconcilerMocks)
		expectedOutcome Outcome
		expectedStatus  domain.OrderStatus
		expectedError   error
		fetchCalls      int
	}{
		{
			name:         "approved payment confirms the order",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("approved"), nil)
				m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, domain.StatusUpdate{
					Status:        domain.StatusConfirmed,
					PaymentStatus: "approved",
					PaymentRef:    TestPaymentID,
				}).Return(true, nil)
			},
			expectedOutcome: OutcomeApplied,
			expectedStatus:  domain.StatusConfirmed,
			fetchCalls:      1,
		},
		{
			name:         "rejected payment cancels the order",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("rejected"), nil)
				m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.MatchedBy(func(u domain.StatusUpdate) bool {
					return u.Status == domain.StatusCancelled && u.PaymentStatus == "rejected"
				})).Return(true, nil)
			},
			expectedOutcome: OutcomeApplied,
			expectedStatus:  domain.StatusCancelled,
			fetchCalls:      1,
		},
		{
			name:         "in process keeps the order pending",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("in_process"), nil)
				m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.MatchedBy(func(u domain.StatusUpdate) bool {
					return u.Status == domain.StatusPending && u.PaymentStatus == "in_process"
				})).Return(true, nil)
			},
			expectedOutcome: OutcomeApplied,
			expectedStatus:  domain.StatusPending,
			fetchCalls:      1,
		},
		{
			name:         "order already final",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("approved"), nil)
				m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.Anything).Return(false, nil)
			},
			expectedOutcome: OutcomeUnchanged,
			expectedStatus:  domain.StatusConfirmed,
			fetchCalls:      1,
		},
		{
			name:            "merchant order topic is ignored",
			notification:    Notification{Type: "merchant_order", PaymentID: TestPaymentID, Token: TestToken},
			setupMocks:      func(m *reconcilerMocks) {},
			expectedOutcome: OutcomeSkipped,
			expectedError:   domain.ErrReconciliationSkipped,
		},
		{
			name:            "missing payment id",
			notification:    Notification{Type: "payment", Token: TestToken},
			setupMocks:      func(m *reconcilerMocks) {},
			expectedOutcome: OutcomeSkipped,
			expectedError:   domain.ErrReconciliationSkipped,
		},
		{
			name:            "missing correlation token",
			notification:    Notification{Type: "payment", PaymentID: TestPaymentID},
			setupMocks:      func(m *reconcilerMocks) {},
			expectedOutcome: OutcomeSkipped,
			expectedError:   domain.ErrReconciliationSkipped,
		},
		{
			name:         "unknown correlation token",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.correlations.On("FindByToken", mock.Anything, TestToken).Return(nil, nil)
			},
			expectedOutcome: OutcomeSkipped,
			expectedError:   domain.ErrReconciliationSkipped,
		},
		{
			name:         "correlation lookup fails",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.correlations.On("FindByToken", mock.Anything, TestToken).Return(nil, errors.New("db down"))
			},
			expectedOutcome: OutcomeFailed,
			expectedError:   domain.ErrTransientFailure,
		},
		{
			name:         "tenant credentials removed",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.correlations.On("FindByToken", mock.Anything, TestToken).
					Return(CreateMockCorrelation(TestToken, TestTenantID, TestOrderID), nil)
				m.credentials.On("Resolve", mock.Anything, TestTenantID).Return("", domain.ErrGatewayNotConfigured)
			},
			expectedOutcome: OutcomeSkipped,
			expectedError:   domain.ErrReconciliationSkipped,
		},
		{
			name:         "payment unknown to the gateway",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).
					Return(nil, &domain.GatewayError{Op: "fetch_payment", StatusCode: 404, Body: "not found"})
			},
			expectedOutcome: OutcomeSkipped,
			expectedError:   domain.ErrReconciliationSkipped,
			fetchCalls:      1,
		},
		{
			name:         "gateway keeps failing",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).
					Return(nil, &domain.GatewayError{Op: "fetch_payment", StatusCode: 503, Body: "unavailable"})
			},
			expectedOutcome: OutcomeFailed,
			expectedError:   domain.ErrTransientFailure,
			fetchCalls:      2,
		},
		{
			name:         "payment lookup times out twice",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).
					Return(nil, fmt.Errorf("gateway fetch_payment: %w", context.DeadlineExceeded))
			},
			expectedOutcome: OutcomeFailed,
			expectedError:   domain.ErrTransientFailure,
			fetchCalls:      2,
		},
		{
			name:         "gateway recovers on retry",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).
					Return(nil, errors.New("i/o timeout")).Once()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).
					Return(payment("approved"), nil).Once()
				m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.Anything).Return(true, nil)
			},
			expectedOutcome: OutcomeApplied,
			expectedStatus:  domain.StatusConfirmed,
			fetchCalls:      2,
		},
		{
			name:         "payment belongs to another order",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).
					Return(&infra.Payment{ID: TestPaymentID, Status: "approved", ExternalReference: "someone-else"}, nil)
			},
			expectedOutcome: OutcomeSkipped,
			expectedError:   domain.ErrReconciliationSkipped,
			fetchCalls:      1,
		},
		{
			name:         "status write fails",
			notification: paymentNotification(),
			setupMocks: func(m *reconcilerMocks) {
				m.resolvesOrder()
				m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("approved"), nil)
				m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.Anything).
					Return(false, errors.New("deadlock"))
			},
			expectedOutcome: OutcomeFailed,
			expectedError:   domain.ErrTransientFailure,
			fetchCalls:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newReconcilerMocks()
			tt.setupMocks(m)
			r := m.reconciler(newCapturePublisher())

			res, err := r.Reconcile(context.Background(), tt.notification)

			require.NotNil(t, res)
			assert.Equal(t, tt.expectedOutcome, res.Outcome)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedStatus, res.Status)
			}
			if tt.expectedOutcome == OutcomeUnchanged {
				require.NoError(t, err)
			}

			m.gateway.AssertNumberOfCalls(t, "FetchPayment", tt.fetchCalls)
			m.repo.AssertExpectations(t)
			m.correlations.AssertExpectations(t)
			m.credentials.AssertExpectations(t)
			m.auditor.AssertNumberOfCalls(t, "Record", 1)
		})
	}
}

func TestReconciler_PublishesOnlyFinalTransitions(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		m := newReconcilerMocks()
		m.resolvesOrder()
		m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("approved"), nil)
		m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.Anything).Return(true, nil)
		pub := newCapturePublisher()

		_, err := m.reconciler(pub).Reconcile(context.Background(), paymentNotification())
		require.NoError(t, err)

		select {
		case topic := <-pub.ch:
			assert.Equal(t, domain.EventOrderPaymentUpdated, topic)
		case <-time.After(time.Second):
			t.Fatal("order.payment_updated was not published")
		}
	})

	t.Run("still pending", func(t *testing.T) {
		m := newReconcilerMocks()
		m.resolvesOrder()
		m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("pending"), nil)
		m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.Anything).Return(true, nil)
		pub := newCapturePublisher()

		_, err := m.reconciler(pub).Reconcile(context.Background(), paymentNotification())
		require.NoError(t, err)

		select {
		case topic := <-pub.ch:
			t.Fatalf("unexpected event %s", topic)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestReconciler_AuditRecord(t *testing.T) {
	m := newReconcilerMocks()
	m.auditor = new(mocks.MockAuditor)
	var rec *mongo.NotificationRecord
	m.auditor.On("Record", mock.Anything, mock.AnythingOfType("*mongo.NotificationRecord")).
		Return(errors.New("mongo down")).
		Run(func(args mock.Arguments) { rec = args.Get(1).(*mongo.NotificationRecord) })
	m.resolvesOrder()
	m.gateway.On("FetchPayment", mock.Anything, TestAccessToken, TestPaymentID).Return(payment("approved"), nil)
	m.repo.On("ApplyStatusUpdate", mock.Anything, TestTenantID, TestOrderID, mock.Anything).Return(true, nil)

	res, err := m.reconciler(newCapturePublisher()).Reconcile(context.Background(), paymentNotification())

	require.NoError(t, err, "audit failures must not fail reconciliation")
	assert.Equal(t, OutcomeApplied, res.Outcome)
	require.NotNil(t, rec)
	assert.Equal(t, TestTenantID, rec.TenantID)
	assert.Equal(t, TestOrderID, rec.OrderID)
	assert.Equal(t, TestPaymentID, rec.PaymentID)
	assert.Equal(t, "approved", rec.GatewayStatus)
	assert.Equal(t, string(OutcomeApplied), rec.Outcome)
}
