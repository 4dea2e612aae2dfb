package events

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/texresolve/accounts-api/internal/api/metrics"
	"github.com/texresolve/accounts-api/internal/core/domain"
)

// NatsPublisher publishes account events on <prefix>.<event type>.
type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNatsPublisher connects to natsURL.
func NewNatsPublisher(natsURL, prefix string) (*NatsPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("accounts-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NatsPublisher{conn: nc, prefix: prefix}, nil
}

// Subject returns the subject an event type is published on.
func Subject(prefix string, t domain.AccountEventType) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// Encode fills in the event id and timestamp when missing and serialises it.
func Encode(event domain.AccountEvent) ([]byte, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return sonic.Marshal(event)
}

func (p *NatsPublisher) Publish(_ context.Context, event domain.AccountEvent) error {
	payload, err := Encode(event)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("encode event: %w", err)
	}

	if err := p.conn.Publish(Subject(p.prefix, event.Type), payload); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "ok").Inc()
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	return p.conn.Drain()
}

// NopPublisher discards events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.AccountEvent) error { return nil }
