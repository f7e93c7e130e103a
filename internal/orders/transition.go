package orders

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type StatusChange struct {
	OrderID        int64
	Status         string
	Carrier        string
	TrackingNumber string
}

type Transition struct {
	Order         Order    `json:"order"`
	Previous      Status   `json:"previous_status"`
	StockReleased bool     `json:"stock_released"`
	Warnings      []string `json:"warnings,omitempty"`
	// StockFault is set when some item could not be credited back. The new
	// status is persisted regardless.
	StockFault error `json:"-"`
}

// ApplyStatus moves an order to any recognised status. Stock is credited back
// only on a held -> released move; released -> released and released -> held
// leave stock alone.
func (s *Service) ApplyStatus(ctx context.Context, req StatusChange) (*Transition, error) {
	next, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	if s.Locker != nil {
		unlock, ok, err := s.Locker.TryLock(ctx, req.OrderID)
		if err != nil {
			return nil, fmt.Errorf("lock order %d: %w", req.OrderID, err)
		}
		if !ok {
			return nil, ErrTransitionInProgress
		}
		defer unlock()
	}

	cur, err := s.Store.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	t := &Transition{Previous: cur.Status}
	log := s.log().With("order_id", cur.ID, "from", cur.Status, "to", next)

	// from here on the move runs to completion even if the caller goes away
	dctx, cancel := s.detached(ctx)
	defer cancel()

	upd := StatusUpdate{OrderID: cur.ID, Version: cur.Version, Status: next}
	if next == StatusShipped {
		upd.Carrier = req.Carrier
		upd.TrackingNumber = req.TrackingNumber
	}

	var updated Order
	if RestoresStock(cur.Status, next) {
		items, err := s.Store.GetItems(dctx, cur.ID)
		if err != nil {
			return nil, fmt.Errorf("load items of order %d: %w", cur.ID, err)
		}
		var missed []OrderItem
		updated, missed, err = s.Store.ReleaseAndUpdate(dctx, upd, items)
		if err != nil {
			return nil, fmt.Errorf("update status of order %d: %w", cur.ID, err)
		}
		t.StockReleased = true
		t.StockFault = stockFault(missed)
		if t.StockFault != nil {
			for _, it := range missed {
				log.ErrorContext(dctx, "stock release failed", "product_id", it.ProductID, "quantity", it.Quantity)
			}
			t.Warnings = append(t.Warnings, "status changed but some stock could not be restored")
		}
	} else {
		updated, err = s.Store.UpdateStatus(dctx, upd)
		if err != nil {
			return nil, fmt.Errorf("update status of order %d: %w", cur.ID, err)
		}
	}
	t.Order = updated
	log.InfoContext(dctx, "order status changed", "stock_released", t.StockReleased)

	s.cacheStatus(dctx, updated)
	if s.Events != nil {
		ev := StatusChanged{Order: updated, Previous: cur.Status, Released: t.StockReleased}
		if err := s.Events.PublishStatusChanged(dctx, ev); err != nil {
			log.WarnContext(dctx, "publish status change failed", "error", err)
		}
	}
	return t, nil
}

func stockFault(missed []OrderItem) error {
	faults := make([]error, 0, len(missed))
	for _, it := range missed {
		faults = append(faults, fmt.Errorf("release product %d qty %d: %w", it.ProductID, it.Quantity, ErrProductNotFound))
	}
	return errors.Join(faults...)
}

func (s *Service) cacheStatus(ctx context.Context, o Order) {
	if s.Cache == nil {
		return
	}
	at := o.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := s.Cache.Put(ctx, o.ID, string(o.Status), at); err != nil {
		s.log().WarnContext(ctx, "cache order status failed", "order_id", o.ID, "error", err)
	}
}
