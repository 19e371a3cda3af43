package rabbitmq

import "context"

type PublisherInterface interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

var (
	_ PublisherInterface = (*Publisher)(nil)
	_ PublisherInterface = NoopPublisher{}
)

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
