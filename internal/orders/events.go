package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderConfirmation = "OrderConfirmationRequested"
	EventOrderStatusChange = "OrderStatusChanged"
	EventPaymentAuthorized = "PaymentAuthorized"
	EventPaymentFailed     = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number or id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type ConfirmationPayload struct {
	OrderID       int64       `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	Total         string      `json:"total"`
	PaymentMethod string      `json:"payment_method"`
	Items         []OrderItem `json:"items"`
	Customer      Customer    `json:"customer"`
	Shipping      Shipping    `json:"shipping"`
}

type StatusChangedPayload struct {
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number,omitempty"`
	From           Status `json:"from"`
	To             Status `json:"to"`
	StockReleased  bool   `json:"stock_released"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type PaymentAuthorizedPayload struct {
	OrderID     int64  `json:"order_id"`
	PaymentRef  string `json:"payment_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentFailedPayload struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"` // e.g. INSUFFICIENT_FUNDS
}
