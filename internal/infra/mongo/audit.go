package mongo

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRecord is one webhook processing attempt.
type NotificationRecord struct {
	ID            string    `bson:"_id,omitempty"`
	TenantID      string    `bson:"tenant_id,omitempty"`
	OrderID       string    `bson:"order_id,omitempty"`
	EventType     string    `bson:"event_type"`
	PaymentID     string    `bson:"payment_id,omitempty"`
	GatewayStatus string    `bson:"gateway_status,omitempty"`
	Outcome       string    `bson:"outcome"`
	Detail        string    `bson:"detail,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
}

type Auditor interface {
	Record(ctx context.Context, rec *NotificationRecord) error
	ListByOrder(ctx context.Context, orderID string, limit int64) ([]*NotificationRecord, error)
}

var (
	_ Auditor = (*AuditRepository)(nil)
	_ Auditor = NoopAuditor{}
)

type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, *NotificationRecord) error { return nil }

func (NoopAuditor) ListByOrder(context.Context, string, int64) ([]*NotificationRecord, error) {
	return nil, nil
}

type AuditRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewAuditRepository(cfg config.MongoDBConfig) (*AuditRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create audit index: %w", err)
	}

	return &AuditRepository{client: client, collection: coll}, nil
}

func (m *AuditRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *AuditRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *AuditRepository) Record(ctx context.Context, rec *NotificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := m.collection.InsertOne(ctx, rec)
	return err
}

// ListByOrder returns the most recent notifications processed for an order.
func (m *AuditRepository) ListByOrder(ctx context.Context, orderID string, limit int64) ([]*NotificationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*NotificationRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
