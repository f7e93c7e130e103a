package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer is the outbound transport. Real delivery lives outside this repo.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{ Log *slog.Logger }

func (l LogMailer) Send(ctx context.Context, m Message) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "mail", "to", m.To, "subject", m.Subject, "bytes", len(m.Body))
	return nil
}

func confirmationMessage(p orders.ConfirmationPayload) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your order %s.\n\n", p.Customer.Name, p.OrderNumber)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "  product %d  x%d  @ %s\n", it.ProductID, it.Quantity, it.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s (%s)\n", p.Total, p.PaymentMethod)
	fmt.Fprintf(&b, "Ship to: %s, %s", p.Shipping.Street, p.Shipping.City)
	if p.Shipping.PostalCode != "" {
		fmt.Fprintf(&b, " %s", p.Shipping.PostalCode)
	}
	if p.Shipping.Country != "" {
		fmt.Fprintf(&b, ", %s", p.Shipping.Country)
	}
	b.WriteString("\n")
	return Message{
		To:      p.Customer.Email,
		Subject: "Order confirmation " + p.OrderNumber,
		Body:    b.String(),
	}
}
