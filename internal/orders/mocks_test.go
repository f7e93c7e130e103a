package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// memLedger implements Ledger with a mutex-guarded conditional decrement.
type memLedger struct {
	mu          sync.Mutex
	stock       map[int64]int
	failRelease map[int64]error
	releases    int
	onReserve   func(productID int64)
}

func newMemLedger(stock map[int64]int) *memLedger {
	return &memLedger{stock: stock, failRelease: map[int64]error{}}
}

func (l *memLedger) Reserve(_ context.Context, productID int64, qty int) (bool, error) {
	if l.onReserve != nil {
		l.onReserve(productID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stock[productID]
	if !ok || s < qty {
		return false, nil
	}
	l.stock[productID] = s - qty
	return true, nil
}

func (l *memLedger) Release(_ context.Context, productID int64, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failRelease[productID]; err != nil {
		return err
	}
	if _, ok := l.stock[productID]; !ok {
		return ErrProductNotFound
	}
	l.stock[productID] += qty
	l.releases++
	return nil
}

func (l *memLedger) Available(_ context.Context, productID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return s, nil
}

func (l *memLedger) get(productID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[productID]
}

// MockStore implements Store in memory.
type MockStore struct {
	mu       sync.Mutex
	products map[int64]Product
	orders   map[int64]*Order
	items    map[int64][]OrderItem
	nextID   int64

	CreateErr error
	AssignErr error
	ItemsErr  error
	UpdateErr error
	GetErr    error
	// UpdateErrOnce fails the next status update only.
	UpdateErrOnce error
	// onUpdate runs before a status update is applied.
	onUpdate func()

	// ledger is credited by ReleaseAndUpdate.
	ledger *memLedger
}

func newMockStore(products ...Product) *MockStore {
	s := &MockStore{
		products: map[int64]Product{},
		orders:   map[int64]*Order{},
		items:    map[int64][]OrderItem{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (m *MockStore) GetProduct(_ context.Context, id int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	return p, nil
}

func (m *MockStore) ListProducts(context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockStore) CreateOrder(_ context.Context, o *Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	o.Version = 1
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MockStore) AssignNumber(_ context.Context, orderID int64, status Status, number string) error {
	if m.AssignErr != nil {
		return m.AssignErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	o.Status = status
	o.OrderNumber = &number
	o.Version++
	return nil
}

func (m *MockStore) InsertItems(_ context.Context, orderID int64, items []OrderItem) error {
	if m.ItemsErr != nil {
		return m.ItemsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		items[i].ID = int64(len(m.items[orderID]) + 1)
		m.items[orderID] = append(m.items[orderID], items[i])
	}
	return nil
}

func (m *MockStore) MarkCancelled(_ context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderID].Status = StatusCancelled
	m.orders[orderID].Version++
	return nil
}

func (m *MockStore) GetOrder(_ context.Context, id int64) (Order, error) {
	if m.GetErr != nil {
		return Order{}, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	return *o, nil
}

func (m *MockStore) GetItems(_ context.Context, orderID int64) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderItem(nil), m.items[orderID]...), nil
}

func (m *MockStore) UpdateStatus(ctx context.Context, u StatusUpdate) (Order, error) {
	if m.onUpdate != nil {
		m.onUpdate()
	}
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	if m.UpdateErr != nil {
		return Order{}, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpdateErrOnce; err != nil {
		m.UpdateErrOnce = nil
		return Order{}, err
	}
	o, ok := m.orders[u.OrderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Version != u.Version {
		return Order{}, ErrVersionConflict
	}
	o.Status = u.Status
	if u.Carrier != "" {
		o.Carrier = u.Carrier
	}
	if u.TrackingNumber != "" {
		o.TrackingNumber = u.TrackingNumber
	}
	o.Version++
	o.UpdatedAt = time.Now()
	return *o, nil
}

// ReleaseAndUpdate credits the ledger only once the update went through,
// matching the single transaction of Repo.
func (m *MockStore) ReleaseAndUpdate(ctx context.Context, u StatusUpdate, items []OrderItem) (Order, []OrderItem, error) {
	o, err := m.UpdateStatus(ctx, u)
	if err != nil {
		return Order{}, nil, err
	}
	var missed []OrderItem
	for _, it := range items {
		if err := m.ledger.Release(ctx, it.ProductID, it.Quantity); err != nil {
			missed = append(missed, it)
		}
	}
	return o, missed, nil
}

// seed stores an order in status st with the given items, as if placed.
func (m *MockStore) seed(st Status, items ...OrderItem) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.orders[id] = &Order{ID: id, Status: st, Version: 1}
	for i := range items {
		items[i].OrderID = id
	}
	m.items[id] = items
	return id
}

func (m *MockStore) countOrders(pred func(Order) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.orders {
		if pred(*o) {
			n++
		}
	}
	return n
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []Confirmation
	Err  error
}

func (m *MockNotifier) SendOrderConfirmation(_ context.Context, c Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, c)
	return nil
}

type MockCart struct {
	Cleared []string
	Err     error
}

func (m *MockCart) Clear(_ context.Context, userID string) error {
	m.Cleared = append(m.Cleared, userID)
	return m.Err
}

type MockEvents struct{ Published []StatusChanged }

func (m *MockEvents) PublishStatusChanged(_ context.Context, ev StatusChanged) error {
	m.Published = append(m.Published, ev)
	return nil
}

type MockLocker struct {
	Held    bool
	Err     error
	Unlocks int
}

func (m *MockLocker) TryLock(context.Context, int64) (func(), bool, error) {
	if m.Err != nil {
		return nil, false, m.Err
	}
	if m.Held {
		return nil, false, nil
	}
	return func() { m.Unlocks++ }, true, nil
}

var errBoom = errors.New("boom")

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fixedClock() time.Time { return time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC) }

// newTestService wires a Service over the given products with the given stock.
func newTestService(stock map[int64]int, products ...Product) (*Service, *MockStore, *memLedger) {
	store := newMockStore(products...)
	ledger := newMemLedger(stock)
	store.ledger = ledger
	svc := &Service{
		Store:   store,
		Ledger:  ledger,
		Numbers: NumberGenerator{Tag: "ORD", Now: fixedClock},
		Log:     quietLogger(),
	}
	return svc, store, ledger
}
