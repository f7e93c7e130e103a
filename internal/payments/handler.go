package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

type statusApplier interface {
	ApplyStatus(ctx context.Context, req orders.StatusChange) (*orders.Transition, error)
}

// Handler maps payment outcomes onto order status transitions. A failed
// payment cancels the order, which credits its stock back once.
type Handler struct {
	Orders statusApplier
	Log    *slog.Logger
}

func NewHandler(o statusApplier, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Orders: o, Log: log}
}

func (h *Handler) Handle(ctx context.Context, m kafkago.Message) error {
	switch kafkax.Header(m, kafkax.HeaderEventType) {
	case "", orders.EventPaymentAuthorized, orders.EventPaymentFailed:
	default:
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		h.Log.Warn("dropping undecodable payment event", "offset", m.Offset, "error", err)
		return nil
	}

	var (
		orderID int64
		target  orders.Status
	)
	switch env.EventType {
	case orders.EventPaymentAuthorized:
		p, err := kafkax.UnwrapPayload[orders.PaymentAuthorizedPayload](env.Payload)
		if err != nil {
			h.Log.Warn("bad payment payload", "event_id", env.EventID, "error", err)
			return nil
		}
		orderID, target = p.OrderID, orders.StatusPaid
	case orders.EventPaymentFailed:
		p, err := kafkax.UnwrapPayload[orders.PaymentFailedPayload](env.Payload)
		if err != nil {
			h.Log.Warn("bad payment payload", "event_id", env.EventID, "error", err)
			return nil
		}
		orderID, target = p.OrderID, orders.StatusCancelled
		h.Log.Info("payment failed", "order_id", p.OrderID, "reason", p.Reason)
	default:
		return nil
	}

	t, err := h.Orders.ApplyStatus(ctx, orders.StatusChange{OrderID: orderID, Status: string(target)})
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		h.Log.Warn("payment event for unknown order", "order_id", orderID, "event_id", env.EventID)
		return nil
	case err != nil:
		return err
	}
	if t.StockFault != nil {
		h.Log.Error("payment transition left stock drift", "order_id", orderID, "error", t.StockFault)
	}
	return nil
}
