package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

type publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Publisher turns order events into envelopes on kafka. Confirmations go
// through a circuit breaker so a stuck broker fails placements' notification
// step fast instead of holding every request until its deadline.
type Publisher struct {
	confirmations publisher
	statuses      publisher
	service       string
	breaker       *gobreaker.CircuitBreaker[struct{}]
	timeout       time.Duration
}

var (
	_ orders.Notifier       = (*Publisher)(nil)
	_ orders.EventPublisher = (*Publisher)(nil)
)

func NewPublisher(confirmations, statuses publisher, service string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "order-confirmation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Publisher{
		confirmations: confirmations,
		statuses:      statuses,
		service:       service,
		breaker:       cb,
		timeout:       2 * time.Second,
	}
}

func (p *Publisher) envelope(eventType string, correlation string, payload any) orders.Envelope {
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.service,
		CorrelationID: correlation,
		Payload:       kafkax.MustMarshal(payload),
	}
}

func (p *Publisher) SendOrderConfirmation(ctx context.Context, c orders.Confirmation) error {
	number := ""
	if c.Order.OrderNumber != nil {
		number = *c.Order.OrderNumber
	}
	ev := p.envelope(orders.EventOrderConfirmation, number, orders.ConfirmationPayload{
		OrderID:       c.Order.ID,
		OrderNumber:   number,
		Total:         c.Order.Total.StringFixed(2),
		PaymentMethod: c.Order.PaymentMethod,
		Items:         c.Items,
		Customer:      c.Customer,
		Shipping:      c.Shipping,
	})
	_, err := p.breaker.Execute(func() (struct{}, error) {
		pctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return struct{}{}, p.confirmations.Publish(pctx, orders.PartitionKey(c.Order.ID), kafkax.MustMarshal(ev),
			kafkax.EventHeaders(ev.EventType, ev.EventVersion)...)
	})
	if err != nil {
		return fmt.Errorf("publish confirmation for order %d: %w", c.Order.ID, err)
	}
	return nil
}

func (p *Publisher) PublishStatusChanged(ctx context.Context, sc orders.StatusChanged) error {
	number := ""
	if sc.Order.OrderNumber != nil {
		number = *sc.Order.OrderNumber
	}
	ev := p.envelope(orders.EventOrderStatusChange, number, orders.StatusChangedPayload{
		OrderID:        sc.Order.ID,
		OrderNumber:    number,
		From:           sc.Previous,
		To:             sc.Order.Status,
		StockReleased:  sc.Released,
		Carrier:        sc.Order.Carrier,
		TrackingNumber: sc.Order.TrackingNumber,
	})
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.statuses.Publish(pctx, orders.PartitionKey(sc.Order.ID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(ev.EventType, ev.EventVersion)...)
}
