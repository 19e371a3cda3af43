package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/mongo"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/infra/redislock"
	"checkout-service/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const paymentEventType = "payment"

// Notification is what the gateway told us, reduced to the fields we use.
// Only PaymentID is used to look anything up at the gateway; the payment
// status always comes from the gateway API.
type Notification struct {
	Type      string
	PaymentID string
	// Token is the correlation token embedded in the notification URL
	// registered with the preference.
	Token string
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

type ReconcileResult struct {
	Outcome       Outcome
	TenantID      string
	OrderID       string
	Status        domain.OrderStatus
	GatewayStatus string
}

type ReconcileOptions struct {
	FetchAttempts  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type ReconcilerDeps struct {
	Orders       repository.OrderRepository
	Correlations repository.CorrelationRepository
	Gateway      infra.GatewayClientInterface
	Credentials  CredentialResolver
	Locker       redislock.Locker
	Publisher    rabbit.PublisherInterface
	Auditor      mongo.Auditor
	Logger       *zap.Logger
}

type Reconciler struct {
	repo         repository.OrderRepository
	correlations repository.CorrelationRepository
	gateway      infra.GatewayClientInterface
	credentials  CredentialResolver
	locker       redislock.Locker
	publisher    rabbit.PublisherInterface
	auditor      mongo.Auditor
	logger       *zap.Logger
	opts         ReconcileOptions
	inflight     singleflight.Group
}

func NewReconciler(deps ReconcilerDeps, opts ReconcileOptions) *Reconciler {
	if opts.FetchAttempts < 1 {
		opts.FetchAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = rabbit.NoopPublisher{}
	}
	auditor := deps.Auditor
	if auditor == nil {
		auditor = mongo.NoopAuditor{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		repo:         deps.Orders,
		correlations: deps.Correlations,
		gateway:      deps.Gateway,
		credentials:  deps.Credentials,
		locker:       deps.Locker,
		publisher:    publisher,
		auditor:      auditor,
		logger:       logger.Named("reconciler"),
		opts:         opts,
	}
}

// Reconcile re-fetches the payment named by n and applies the resulting
// status to its order. Errors wrap domain.ErrReconciliationSkipped when the
// notification can never be applied and domain.ErrTransientFailure when a
// redelivery may succeed.
func (r *Reconciler) Reconcile(ctx context.Context, n Notification) (*ReconcileResult, error) {
	key := n.Token + "|" + n.PaymentID
	v, err, _ := r.inflight.Do(key, func() (any, error) {
		res, err := r.reconcile(ctx, n)
		r.audit(ctx, n, res, err)
		return res, err
	})
	res, _ := v.(*ReconcileResult)
	return res, err
}

func (r *Reconciler) reconcile(ctx context.Context, n Notification) (*ReconcileResult, error) {
	res := &ReconcileResult{Outcome: OutcomeSkipped}

	if !strings.EqualFold(strings.TrimSpace(n.Type), paymentEventType) {
		return res, skip("event type %q ignored", n.Type)
	}
	if n.PaymentID == "" {
		return res, skip("notification without payment id")
	}
	if n.Token == "" {
		return res, skip("notification without correlation token")
	}

	corr, err := r.correlations.FindByToken(ctx, n.Token)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, transient("load correlation: %v", err)
	}
	if corr == nil {
		return res, skip("unknown correlation token")
	}
	res.TenantID, res.OrderID = corr.TenantID, corr.OrderID

	accessToken, err := r.credentials.Resolve(ctx, corr.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayNotConfigured) {
			return res, skip("tenant %s has no gateway credentials", corr.TenantID)
		}
		res.Outcome = OutcomeFailed
		return res, transient("resolve credentials: %v", err)
	}

	unlock, err := r.locker.Lock(ctx, redislock.OrderKey(corr.OrderID))
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, transient("lock order: %v", err)
	}
	defer unlock()

	payment, err := r.fetchPayment(ctx, accessToken, n.PaymentID)
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) && !gwErr.Temporary() {
			r.logger.Warn("gateway refused payment lookup",
				zap.String("order_id", corr.OrderID),
				zap.String("payment_id", n.PaymentID),
				zap.Int("upstream_status", gwErr.StatusCode),
				zap.String("upstream_body", gwErr.Body))
			return res, skip("payment %s not retrievable: status %d", n.PaymentID, gwErr.StatusCode)
		}
		res.Outcome = OutcomeFailed
		return res, transient("fetch payment %s: %v", n.PaymentID, err)
	}
	res.GatewayStatus = payment.Status

	if payment.ExternalReference != corr.OrderID {
		return res, skip("payment %s references %q, expected order %s", n.PaymentID, payment.ExternalReference, corr.OrderID)
	}

	status, _ := domain.MapGatewayStatus(payment.Status)
	res.Status = status
	upd := domain.StatusUpdate{
		Status:        status,
		PaymentStatus: strings.ToLower(strings.TrimSpace(payment.Status)),
		PaymentRef:    payment.ID,
	}

	changed, err := r.repo.ApplyStatusUpdate(ctx, corr.TenantID, corr.OrderID, upd)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, transient("apply status: %v", err)
	}
	if !changed {
		res.Outcome = OutcomeUnchanged
		r.logger.Info("order already final, notification ignored",
			zap.String("order_id", corr.OrderID),
			zap.String("payment_id", payment.ID),
			zap.String("gateway_status", payment.Status))
		return res, nil
	}

	res.Outcome = OutcomeApplied
	r.logger.Info("order reconciled",
		zap.String("tenant_id", corr.TenantID),
		zap.String("order_id", corr.OrderID),
		zap.String("payment_id", payment.ID),
		zap.String("status", string(status)),
		zap.String("gateway_status", payment.Status))

	if status != domain.StatusPending {
		go r.publish(domain.OrderPaymentUpdatedEvent{
			OrderID:       corr.OrderID,
			TenantID:      corr.TenantID,
			Status:        status,
			PaymentStatus: upd.PaymentStatus,
			PaymentRef:    upd.PaymentRef,
			UpdatedAt:     time.Now().UTC(),
		})
	}
	return res, nil
}

// fetchPayment retries transient lookup failures with exponential backoff,
// at most FetchAttempts calls in total.
func (r *Reconciler) fetchPayment(ctx context.Context, accessToken, paymentID string) (*infra.Payment, error) {
	var payment *infra.Payment
	attempt := 0

	op := func() error {
		attempt++
		p, err := r.gateway.FetchPayment(ctx, accessToken, paymentID)
		if err != nil {
			var gwErr *domain.GatewayError
			if errors.As(err, &gwErr) && !gwErr.Temporary() {
				return backoff.Permanent(err)
			}
			r.logger.Warn("payment lookup failed",
				zap.String("payment_id", paymentID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		payment = p
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.opts.InitialBackoff
	eb.MaxInterval = r.opts.MaxBackoff
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.opts.FetchAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *Reconciler) audit(ctx context.Context, n Notification, res *ReconcileResult, err error) {
	rec := &mongo.NotificationRecord{
		EventType: n.Type,
		PaymentID: n.PaymentID,
		CreatedAt: time.Now().UTC(),
	}
	if res != nil {
		rec.TenantID = res.TenantID
		rec.OrderID = res.OrderID
		rec.GatewayStatus = res.GatewayStatus
		rec.Outcome = string(res.Outcome)
	}
	if err != nil {
		rec.Detail = err.Error()
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if aerr := r.auditor.Record(actx, rec); aerr != nil {
		r.logger.Warn("failed to record notification", zap.Error(aerr))
	}
}

func (r *Reconciler) publish(evt domain.OrderPaymentUpdatedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.publisher.Publish(ctx, domain.EventOrderPaymentUpdated, evt); err != nil {
		r.logger.Warn("failed to publish event",
			zap.String("pattern", domain.EventOrderPaymentUpdated),
			zap.String("order_id", evt.OrderID),
			zap.Error(err))
	}
}

func skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrReconciliationSkipped, fmt.Sprintf(format, args...))
}

func transient(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrTransientFailure, fmt.Sprintf(format, args...))
}
