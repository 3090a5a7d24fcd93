package saga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/imrishuroy/go-orderflow-saga/internal/inventory"
	"github.com/imrishuroy/go-orderflow-saga/internal/notify"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/payment"
)

// fakeOrders mirrors the conditional semantics of orders.Store in memory.
type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*orders.Order

	getErr        error
	transitionErr error
	markErr       error
	writes        int
	markCalls     int
}

func newFakeOrders(os ...orders.Order) *fakeOrders {
	f := &fakeOrders{orders: map[string]*orders.Order{}}
	for i := range os {
		o := os[i]
		f.orders[o.OrderID] = &o
	}
	return f
}

func (f *fakeOrders) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", orderID, orders.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) Transition(ctx context.Context, orderID string, from, to orders.Status, note string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	if !from.CanTransition(to) {
		return nil, orders.ErrInvalidTransition
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	if o.Status != from {
		return nil, orders.ErrStatusMismatch
	}
	f.writes++
	o.Status = to
	o.Notes = note
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) MarkFailed(ctx context.Context, orderID, note string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return nil, f.markErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	if o.Status.IsTerminal() {
		return nil, orders.ErrStatusMismatch
	}
	f.writes++
	o.Status = orders.StatusFailed
	o.Notes = note
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) UpdatePayment(ctx context.Context, orderID string, p orders.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	f.writes++
	o.Payment.Status = p.Status
	if p.TransactionID != "" {
		o.Payment.TransactionID = p.TransactionID
	}
	if p.Amount > 0 {
		o.Payment.Amount = p.Amount
	}
	return nil
}

func (f *fakeOrders) snapshot(orderID string) orders.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[orderID]
}

// fakeInventory serialises decrements under a mutex, as DynamoDB does for a single item, and
// remembers reservation ids the way the store's markers do.
type fakeInventory struct {
	mu       sync.Mutex
	stock    map[string]int
	reserved map[string]bool
	getErr   error
	decErr   error
}

func newFakeInventory(stock map[string]int) *fakeInventory {
	return &fakeInventory{stock: stock, reserved: map[string]bool{}}
}

func (f *fakeInventory) GetStock(ctx context.Context, productID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	n, ok := f.stock[productID]
	if !ok {
		return 0, inventory.ErrNotFound
	}
	return n, nil
}

func (f *fakeInventory) DecrementIfAvailable(ctx context.Context, productID string, quantity int, reservationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decErr != nil {
		return f.decErr
	}
	if f.reserved[reservationID] {
		return inventory.ErrAlreadyReserved
	}
	n, ok := f.stock[productID]
	if !ok || n < quantity {
		return inventory.ErrInsufficientStock
	}
	f.stock[productID] = n - quantity
	f.reserved[reservationID] = true
	return nil
}

func (f *fakeInventory) level(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("MSG-%d", len(f.sent)), nil
}

// countingGateway approves every charge with a fresh transaction id and counts the calls.
type countingGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return payment.Charge{TransactionID: payment.NewTransactionID(), Amount: req.Amount}, nil
}

type failingGateway struct{ err error }

func (g failingGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	return payment.Charge{}, g.err
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func happyOrder(id string) orders.Order {
	return orders.NewOrder(id,
		orders.Customer{CustomerID: "c-1", Email: "ada@example.com", Name: "Ada Lovelace"},
		[]orders.Item{
			{ProductID: "p-1", Quantity: 2, UnitPrice: 19.99},
			{ProductID: "p-2", Quantity: 1, UnitPrice: 49.99},
		},
		orders.ShippingAddress{"street": "1 Main St", "city": "Springfield", "postal_code": "12345", "country": "US"},
		orders.Payment{PaymentMethod: "credit_card"},
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), 0)
}

func withStatus(o orders.Order, s orders.Status) orders.Order {
	o.Status = s
	return o
}

type harness struct {
	steps     *Steps
	orders    *fakeOrders
	inventory *fakeInventory
	notifier  *fakeNotifier
}

func newHarness(gateway payment.Gateway, stock map[string]int, os ...orders.Order) *harness {
	h := &harness{
		orders:    newFakeOrders(os...),
		inventory: newFakeInventory(stock),
		notifier:  &fakeNotifier{},
	}
	if gateway == nil {
		gateway = payment.NewApproveAll()
	}
	h.steps = NewSteps(h.orders, h.inventory, gateway, h.notifier, discardLogger())
	return h
}
