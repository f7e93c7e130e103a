package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// PlaceRequest is shared by guest and authenticated placement; an empty
// UserID means guest.
type PlaceRequest struct {
	UserID        string
	Items         []ItemInput
	PaymentMethod string
	Customer      Customer
	Shipping      Shipping
}

func (r PlaceRequest) Guest() bool { return r.UserID == "" }

func (r PlaceRequest) Validate() error {
	if len(r.Items) == 0 {
		return invalid("order has no items")
	}
	for i, it := range r.Items {
		if it.ProductID <= 0 {
			return invalid("item %d: missing product_id", i)
		}
		if it.Quantity <= 0 {
			return invalid("item %d: quantity must be positive", i)
		}
	}
	if strings.TrimSpace(r.Shipping.Street) == "" || strings.TrimSpace(r.Shipping.City) == "" {
		return invalid("shipping street and city are required")
	}
	if r.Guest() && strings.TrimSpace(r.Customer.Email) == "" {
		return invalid("guest orders require a contact email")
	}
	return nil
}

type Placement struct {
	Order    Order       `json:"order"`
	Items    []OrderItem `json:"items"`
	Warnings []string    `json:"warnings,omitempty"`
}

// placement tracks what one Place call has done so far, so the abort path
// knows exactly what to undo.
type placement struct {
	orderID  int64
	reserved []OrderItem
}

// Place reserves stock item by item in the order given, then persists the
// order. Any failure after the first reservation releases everything reserved
// by this call and cancels the header if it was already written.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Placement, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.PlaceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.PlaceTimeout)
		defer cancel()
	}

	var p placement
	total := decimal.Zero
	for _, it := range req.Items {
		if err := ctx.Err(); err != nil {
			return nil, s.abort(ctx, &p, fmt.Errorf("place order: %w", err))
		}
		prod, err := s.Store.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, s.abort(ctx, &p, err)
		}
		ok, err := s.Ledger.Reserve(ctx, prod.ID, it.Quantity)
		if err != nil {
			return nil, s.abort(ctx, &p, fmt.Errorf("reserve product %d: %w", prod.ID, err))
		}
		if !ok {
			return nil, s.abort(ctx, &p, s.insufficient(ctx, prod, it.Quantity))
		}
		p.reserved = append(p.reserved, OrderItem{
			ProductID: prod.ID,
			Quantity:  it.Quantity,
			Price:     prod.Price,
		})
		total = total.Add(prod.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	order := Order{
		Status:        StatusPending,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		Customer:      req.Customer,
		Shipping:      req.Shipping,
	}
	if !req.Guest() {
		uid := req.UserID
		order.UserID = &uid
	}
	if err := s.Store.CreateOrder(ctx, &order); err != nil {
		return nil, s.abort(ctx, &p, fmt.Errorf("create order: %w", err))
	}
	p.orderID = order.ID

	number := s.Numbers.Generate(order.ID)
	if err := s.Store.AssignNumber(ctx, order.ID, StatusPendingPayment, number); err != nil {
		return nil, s.abort(ctx, &p, fmt.Errorf("assign order number: %w", err))
	}
	order.Status = StatusPendingPayment
	order.OrderNumber = &number

	items := make([]OrderItem, len(p.reserved))
	copy(items, p.reserved)
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := s.Store.InsertItems(ctx, order.ID, items); err != nil {
		return nil, s.abort(ctx, &p, fmt.Errorf("insert order items: %w", err))
	}

	out := &Placement{Order: order, Items: items}
	log := s.log().With("order_id", order.ID, "order_number", number)
	log.InfoContext(ctx, "order placed", "items", len(items), "total", total.StringFixed(2))

	if !req.Guest() && s.Cart != nil {
		if err := s.Cart.Clear(ctx, req.UserID); err != nil {
			log.WarnContext(ctx, "cart clear failed", "user_id", req.UserID, "error", err)
		}
	}
	if s.Notifier != nil {
		c := Confirmation{Order: order, Items: items, Customer: req.Customer, Shipping: req.Shipping}
		if err := s.Notifier.SendOrderConfirmation(ctx, c); err != nil {
			log.WarnContext(ctx, "order confirmation failed", "error", err)
			out.Warnings = append(out.Warnings, "order placed but the confirmation could not be sent")
		}
	}
	s.cacheStatus(ctx, order)
	return out, nil
}

func (s *Service) insufficient(ctx context.Context, prod Product, requested int) error {
	available, err := s.Ledger.Available(ctx, prod.ID)
	if err != nil {
		s.log().WarnContext(ctx, "read available stock failed", "product_id", prod.ID, "error", err)
		available = prod.Stock
	}
	return &InsufficientStockError{ProductID: prod.ID, Requested: requested, Available: available}
}

// abort runs compensation for p and returns the fault to surface. Release
// faults are logged one by one and never stop the rest of the rollback.
func (s *Service) abort(ctx context.Context, p *placement, cause error) error {
	if len(p.reserved) == 0 && p.orderID == 0 {
		return cause
	}
	rctx, cancel := s.detached(ctx)
	defer cancel()

	log := s.log().With("order_id", p.orderID)
	var faults []error
	for _, it := range p.reserved {
		if err := s.Ledger.Release(rctx, it.ProductID, it.Quantity); err != nil {
			log.ErrorContext(rctx, "rollback release failed",
				"product_id", it.ProductID, "quantity", it.Quantity, "error", err)
			faults = append(faults, fmt.Errorf("release product %d qty %d: %w", it.ProductID, it.Quantity, err))
		}
	}
	if p.orderID != 0 {
		if err := s.Store.MarkCancelled(rctx, p.orderID); err != nil {
			log.ErrorContext(rctx, "cancel aborted order failed", "error", err)
			faults = append(faults, fmt.Errorf("cancel order %d: %w", p.orderID, err))
		}
	}

	var stock *InsufficientStockError
	if errors.As(cause, &stock) {
		log.InfoContext(rctx, "placement rejected", "reason", cause, "released", len(p.reserved))
	} else {
		log.WarnContext(rctx, "placement aborted", "error", cause, "released", len(p.reserved))
	}
	if len(faults) > 0 {
		return &RollbackError{Cause: cause, Faults: faults}
	}
	return cause
}
