package orders

import (
	"context"
	"time"
)

// Ledger owns the per-product stock counter. Reserve must be a single
// conditional decrement at the data store; false means not enough stock.
type Ledger interface {
	Reserve(ctx context.Context, productID int64, qty int) (bool, error)
	Release(ctx context.Context, productID int64, qty int) error
	Available(ctx context.Context, productID int64) (int, error)
}

type Store interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// CreateOrder inserts the header and fills ID, Version and timestamps.
	CreateOrder(ctx context.Context, o *Order) error
	AssignNumber(ctx context.Context, orderID int64, status Status, number string) error
	InsertItems(ctx context.Context, orderID int64, items []OrderItem) error
	MarkCancelled(ctx context.Context, orderID int64) error

	GetOrder(ctx context.Context, id int64) (Order, error)
	GetItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (Order, error)
	// ReleaseAndUpdate credits items back to stock and applies u atomically:
	// if the update does not commit, no stock is credited. Items whose
	// product no longer exists are skipped and returned.
	ReleaseAndUpdate(ctx context.Context, u StatusUpdate, items []OrderItem) (Order, []OrderItem, error)
}

type StatusUpdate struct {
	OrderID        int64
	Version        int
	Status         Status
	Carrier        string
	TrackingNumber string
}

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

type Confirmation struct {
	Order    Order
	Items    []OrderItem
	Customer Customer
	Shipping Shipping
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, c Confirmation) error
}

type StatusChanged struct {
	Order    Order
	Previous Status
	Released bool
}

type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}

type StatusCache interface {
	Put(ctx context.Context, orderID int64, status string, updatedAt time.Time) error
}

// Locker serialises status changes per order. ok=false means someone else
// holds the lock.
type Locker interface {
	TryLock(ctx context.Context, orderID int64) (unlock func(), ok bool, err error)
}
