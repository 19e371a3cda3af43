package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/infra/redislock"
	"checkout-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrOrderNotFound = domain.ErrOrderNotFound

type CartLine struct {
	ProductID uint64
	Quantity  int64
	UnitPrice decimal.Decimal
}

type CreateOrderInput struct {
	TenantID      string
	Customer      domain.CustomerSnapshot
	PaymentMethod domain.PaymentMethod
	Lines         []CartLine
	DeliveryFee   decimal.Decimal
	// Subtotal and Total are what the client displayed; when present they
	// must match the server-side computation.
	Subtotal *decimal.Decimal
	Total    *decimal.Decimal
	Notes    string
}

type PaymentInitiation struct {
	PreferenceID string
	RedirectURL  string
}

type OrderStatusView struct {
	ID            string             `json:"id"`
	OrderNumber   int64              `json:"orderNumber"`
	Status        domain.OrderStatus `json:"status"`
	PaymentStatus string             `json:"paymentStatus"`
}

type CheckoutOptions struct {
	// PublicURL is this service's externally reachable base URL.
	PublicURL string
	// StorefrontURL receives the customer back from the gateway.
	StorefrontURL      string
	Currency           string
	CatalogConcurrency int
}

type OrderServiceDeps struct {
	Orders       repository.OrderRepository
	Correlations repository.CorrelationRepository
	Products     infra.ProductClientInterface
	Gateway      infra.GatewayClientInterface
	Credentials  CredentialResolver
	Locker       redislock.Locker
	Publisher    rabbit.PublisherInterface
	Logger       *zap.Logger
}

type OrderService struct {
	repo         repository.OrderRepository
	correlations repository.CorrelationRepository
	prodClient   infra.ProductClientInterface
	gateway      infra.GatewayClientInterface
	credentials  CredentialResolver
	locker       redislock.Locker
	publisher    rabbit.PublisherInterface
	logger       *zap.Logger
	opts         CheckoutOptions
	newID        func() string
}

func NewOrderService(deps OrderServiceDeps, opts CheckoutOptions) *OrderService {
	if opts.CatalogConcurrency <= 0 {
		opts.CatalogConcurrency = 8
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = rabbit.NoopPublisher{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		repo:         deps.Orders,
		correlations: deps.Correlations,
		prodClient:   deps.Products,
		gateway:      deps.Gateway,
		credentials:  deps.Credentials,
		locker:       deps.Locker,
		publisher:    publisher,
		logger:       logger.Named("order-service"),
		opts:         opts,
		newID:        uuid.NewString,
	}
}

func (u *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := validateCart(in); err != nil {
		return nil, err
	}

	products, err := u.lookupProducts(ctx, in.TenantID, in.Lines)
	if err != nil {
		return nil, err
	}

	items, subtotal, err := priceLines(in.Lines, products)
	if err != nil {
		return nil, err
	}
	fee := in.DeliveryFee.Round(2)
	total := subtotal.Add(fee)

	if in.Subtotal != nil && !in.Subtotal.Equal(subtotal) {
		return nil, domain.NewValidationError("subtotal", "expected %s, got %s", subtotal.StringFixed(2), in.Subtotal.StringFixed(2))
	}
	if in.Total != nil && !in.Total.Equal(total) {
		return nil, domain.NewValidationError("total", "expected %s, got %s", total.StringFixed(2), in.Total.StringFixed(2))
	}

	order := &domain.Order{
		ID:            u.newID(),
		TenantID:      in.TenantID,
		Customer:      in.Customer,
		Items:         items,
		Subtotal:      subtotal,
		DeliveryFee:   fee,
		Total:         total,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.StatusPending,
		Notes:         strings.TrimSpace(in.Notes),
	}

	if err := u.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	u.logger.Info("order created",
		zap.String("tenant_id", order.TenantID),
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)))

	go u.publish(domain.EventOrderCreated, domain.OrderCreatedEvent{
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		OrderNumber:   order.OrderNumber,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
	})

	return order, nil
}

func validateCart(in CreateOrderInput) error {
	if in.TenantID == "" {
		return domain.NewValidationError("tenantId", "required")
	}
	if len(in.Lines) == 0 {
		return domain.NewValidationError("items", "cart is empty")
	}
	for i, l := range in.Lines {
		if l.ProductID == 0 {
			return domain.NewValidationError(fmt.Sprintf("items[%d].productId", i), "required")
		}
		if l.Quantity <= 0 {
			return domain.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if l.UnitPrice.IsNegative() {
			return domain.NewValidationError(fmt.Sprintf("items[%d].unitPrice", i), "must not be negative")
		}
	}
	if in.DeliveryFee.IsNegative() {
		return domain.NewValidationError("deliveryFee", "must not be negative")
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		return domain.NewValidationError("customer.name", "required")
	}
	if strings.TrimSpace(in.Customer.Phone) == "" {
		return domain.NewValidationError("customer.phone", "required")
	}
	if !in.PaymentMethod.Valid() {
		return domain.NewValidationError("paymentMethod", "unsupported value %q", in.PaymentMethod)
	}
	return nil
}

// lookupProducts fetches every distinct product of the cart from the catalog.
func (u *OrderService) lookupProducts(ctx context.Context, tenantID string, lines []CartLine) (map[uint64]*infra.ProductInfo, error) {
	ids := make([]uint64, 0, len(lines))
	seen := make(map[uint64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	found := make([]*infra.ProductInfo, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.CatalogConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := u.prodClient.GetProductById(gctx, tenantID, id)
			if err != nil {
				return fmt.Errorf("catalog lookup for product %d: %w", id, err)
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[uint64]*infra.ProductInfo, len(ids))
	for i, id := range ids {
		out[id] = found[i]
	}
	return out, nil
}

// priceLines builds order items from catalog prices and rejects lines whose
// client-side price or quantity no longer holds.
func priceLines(lines []CartLine, products map[uint64]*infra.ProductInfo) ([]domain.OrderItem, decimal.Decimal, error) {
	wanted := make(map[uint64]int64, len(products))
	for _, l := range lines {
		wanted[l.ProductID] += l.Quantity
	}

	items := make([]domain.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		field := fmt.Sprintf("items[%d]", i)
		p := products[l.ProductID]
		if p == nil {
			return nil, decimal.Zero, domain.NewValidationError(field+".productId", "product %d not found", l.ProductID)
		}
		if wanted[l.ProductID] > p.Stock {
			return nil, decimal.Zero, domain.NewValidationError(field+".quantity", "only %d of %q in stock", p.Stock, p.Name)
		}
		price := p.Price.Round(2)
		if !l.UnitPrice.Equal(price) {
			return nil, decimal.Zero, domain.NewValidationError(field+".unitPrice", "price of %q is now %s", p.Name, price.StringFixed(2))
		}

		lineTotal := price.Mul(decimal.NewFromInt(l.Quantity))
		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   price,
			Quantity:    l.Quantity,
			TotalPrice:  lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal, nil
}

// InitiatePayment creates a gateway preference for a pending order and
// returns the URL the customer must be redirected to. Calling it again for
// the same order returns the preference created the first time.
func (u *OrderService) InitiatePayment(ctx context.Context, tenantID, orderID string) (*PaymentInitiation, error) {
	order, err := u.GetOrderById(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.PaymentGateway {
		return nil, fmt.Errorf("%w: payment method is %s", domain.ErrInvalidState, order.PaymentMethod)
	}
	if order.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrInvalidState, order.Status)
	}

	accessToken, err := u.credentials.Resolve(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayNotConfigured) {
			u.logger.Info("gateway not configured", zap.String("tenant_id", tenantID))
		}
		return nil, err
	}

	unlock, err := u.locker.Lock(ctx, redislock.OrderKey(order.ID))
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	defer unlock()

	existing, err := u.correlations.FindByOrderID(ctx, tenantID, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &PaymentInitiation{PreferenceID: existing.PreferenceRef, RedirectURL: existing.RedirectURL}, nil
	}

	token := u.newID()
	pref, err := u.gateway.CreatePreference(ctx, accessToken, u.preferenceRequest(order, token))
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			u.logger.Error("gateway rejected preference",
				zap.String("tenant_id", tenantID),
				zap.String("order_id", order.ID),
				zap.Int("upstream_status", gwErr.StatusCode),
				zap.String("upstream_body", gwErr.Body))
		} else {
			u.logger.Error("preference request failed",
				zap.String("tenant_id", tenantID),
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
		return nil, err
	}

	err = u.repo.SetPreferenceRef(ctx, &domain.GatewayCorrelation{
		Token:         token,
		PreferenceRef: pref.ID,
		TenantID:      tenantID,
		OrderID:       order.ID,
		RedirectURL:   pref.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("store preference: %w", err)
	}

	u.logger.Info("payment initiated",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", order.ID),
		zap.String("preference_id", pref.ID))

	return &PaymentInitiation{PreferenceID: pref.ID, RedirectURL: pref.RedirectURL}, nil
}

func (u *OrderService) preferenceRequest(order *domain.Order, token string) infra.PreferenceRequest {
	items := make([]infra.PreferenceItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, infra.PreferenceItem{
			Title:     it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	return infra.PreferenceRequest{
		OrderID:     order.ID,
		Items:       items,
		DeliveryFee: order.DeliveryFee,
		Currency:    u.opts.Currency,
		Payer: infra.Payer{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		BackURLs: infra.BackURLs{
			Success: u.backURL(order.ID, "success"),
			Failure: u.backURL(order.ID, "failure"),
			Pending: u.backURL(order.ID, "pending"),
		},
		NotificationURL: strings.TrimRight(u.opts.PublicURL, "/") + "/webhooks/payments?token=" + url.QueryEscape(token),
	}
}

func (u *OrderService) backURL(orderID, result string) string {
	q := url.Values{}
	q.Set("order", orderID)
	q.Set("result", result)
	sep := "?"
	if strings.Contains(u.opts.StorefrontURL, "?") {
		sep = "&"
	}
	return u.opts.StorefrontURL + sep + q.Encode()
}

func (u *OrderService) GetOrderById(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	o, err := u.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (u *OrderService) GetOrderStatus(ctx context.Context, tenantID, id string) (*OrderStatusView, error) {
	o, err := u.GetOrderById(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &OrderStatusView{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	}, nil
}

func (u *OrderService) publish(pattern string, evt any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := u.publisher.Publish(ctx, pattern, evt); err != nil {
		u.logger.Warn("failed to publish event", zap.String("pattern", pattern), zap.Error(err))
	}
}
