package orders

import "fmt"

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusToShip         Status = "to_ship"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusReturn         Status = "return"
	StatusRefund         Status = "refund"
	StatusCancelled      Status = "cancelled"

	// legacy synonyms, still accepted as targets
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
)

var known = map[Status]bool{
	StatusPendingPayment: true,
	StatusPaid:           true,
	StatusToShip:         true,
	StatusShipped:        true,
	StatusDelivered:      true,
	StatusReturn:         true,
	StatusRefund:         true,
	StatusCancelled:      true,
	StatusPending:        true,
	StatusProcessing:     true,
}

// released statuses are the ones under which an order no longer holds stock.
var released = map[Status]bool{
	StatusCancelled: true,
	StatusReturn:    true,
	StatusRefund:    true,
}

// ParseStatus returns ErrInvalidStatus for anything outside the recognised set.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool { return known[s] }

// ReleasesStock reports whether stock is credited back while an order sits in s.
func (s Status) ReleasesStock() bool { return released[s] }

// RestoresStock is true only for a move from a stock-held status into a
// stock-released one. Moves between released statuses and moves back out of
// a released status never touch stock.
func RestoresStock(from, to Status) bool {
	return !from.ReleasesStock() && to.ReleasesStock()
}
