package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const defaultRollbackTimeout = 15 * time.Second

// Service ties the stock ledger, the order store and the best-effort
// collaborators together. Store, Ledger are required; the rest may be nil.
type Service struct {
	Store    Store
	Ledger   Ledger
	Numbers  NumberGenerator
	Cart     CartClearer
	Notifier Notifier
	Events   EventPublisher
	Cache    StatusCache
	Locker   Locker
	Log      *slog.Logger

	// PlaceTimeout bounds the reservation loop and persistence of one placement.
	PlaceTimeout time.Duration
	// RollbackTimeout bounds compensation and status persistence, which run
	// detached from the caller's context so a timeout never strands stock.
	RollbackTimeout time.Duration
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// detached keeps ctx values but not its cancellation, bounded by RollbackTimeout.
func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.RollbackTimeout
	if timeout <= 0 {
		timeout = defaultRollbackTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*OrderDetail, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.Store.GetItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load items of order %d: %w", id, err)
	}
	return &OrderDetail{Order: o, Items: items}, nil
}

// GetOrderByNumber resolves a customer-facing number and checks it matches
// exactly what was assigned.
func (s *Service) GetOrderByNumber(ctx context.Context, number string) (*OrderDetail, error) {
	id, err := ParseOrderNumber(number)
	if err != nil {
		return nil, err
	}
	d, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Order.OrderNumber == nil || *d.Order.OrderNumber != number {
		return nil, ErrOrderNotFound
	}
	return d, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Store.ListProducts(ctx)
}
