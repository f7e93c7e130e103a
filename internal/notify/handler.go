package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// ConfirmationHandler delivers order confirmations consumed from kafka.
type ConfirmationHandler struct {
	Mailer      Mailer
	Redis       *redis.Client // optional: dedup by event id
	ServiceName string
	Log         *slog.Logger
}

func (h *ConfirmationHandler) Handle(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.Header(m, kafkax.HeaderEventType); t != "" && t != orders.EventOrderConfirmation {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		h.logger().Warn("dropping undecodable message", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != orders.EventOrderConfirmation {
		return nil
	}

	var dkey string
	if h.Redis != nil {
		dkey = fmt.Sprintf(redisx.KeyDedup, h.ServiceName, env.EventID)
		first, err := redisx.MarkOnce(ctx, h.Redis, dkey, redisx.TTLDedup)
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if !first {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.ConfirmationPayload](env.Payload)
	if err != nil {
		h.logger().Warn("dropping bad confirmation payload", "event_id", env.EventID, "error", err)
		return nil
	}
	if p.Customer.Email == "" {
		h.logger().Warn("confirmation without recipient", "order_id", p.OrderID)
		return nil
	}
	if err := h.Mailer.Send(ctx, confirmationMessage(p)); err != nil {
		if dkey != "" {
			// let a redelivery try again
			_ = h.Redis.Del(context.WithoutCancel(ctx), dkey).Err()
		}
		return fmt.Errorf("send confirmation for order %d: %w", p.OrderID, err)
	}
	h.logger().Info("confirmation sent", "order_id", p.OrderID, "order_number", p.OrderNumber)
	return nil
}

func (h *ConfirmationHandler) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}
