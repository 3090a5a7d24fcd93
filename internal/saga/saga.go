// Package saga holds the five order-fulfillment steps. Each step is a transition of the order state
// machine, triggered when the dispatcher sees the order enter the step's source status.
package saga

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
)

type Name string

const (
	Validate       Name = "validate"
	CheckInventory Name = "check_inventory"
	ProcessPayment Name = "process_payment"
	Fulfill        Name = "fulfill"
	Notify         Name = "notify"
)

// routes binds each non-terminal status to the step that moves an order out of it.
var routes = map[orders.Status]Name{
	orders.StatusReceived:         Validate,
	orders.StatusValidated:        CheckInventory,
	orders.StatusInventoryChecked: ProcessPayment,
	orders.StatusPaymentProcessed: Fulfill,
	orders.StatusFulfilled:        Notify,
}

// Names returns the steps in saga order.
func Names() []Name {
	return []Name{Validate, CheckInventory, ProcessPayment, Fulfill, Notify}
}

// StepFor returns the step bound to status. COMPLETED, FAILED and unknown statuses have none.
func StepFor(status orders.Status) (Name, bool) {
	n, ok := routes[status]
	return n, ok
}

func ParseName(s string) (Name, error) {
	for _, n := range Names() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown step %q", s)
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"  // business failure, handled
	OutcomeSkipped Outcome = "skipped" // order not at the step's source status; nothing written
	OutcomeFault   Outcome = "fault"   // unexpected error, propagated to the caller
)

// Input is the payload every step is invoked with.
type Input struct {
	OrderID string `json:"order_id"`
}

type ItemAvailability struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

// Result is what a step returns to its invoker. Step-specific fields are only set by the step that
// produces them.
type Result struct {
	Outcome          Outcome            `json:"status"`
	OrderID          string             `json:"order_id"`
	Message          string             `json:"message"`
	TransactionID    string             `json:"transaction_id,omitempty"`
	Amount           float64            `json:"amount,omitempty"`
	TrackingID       string             `json:"tracking_id,omitempty"`
	MessageID        string             `json:"message_id,omitempty"`
	InventoryResults []ItemAvailability `json:"inventory_results,omitempty"`
	Err              error              `json:"-"`
}

// HandlerFunc runs one step for one order. A non-nil error always comes with an OutcomeFault result.
type HandlerFunc func(ctx context.Context, in Input) (Result, error)

// OrderRepository is the order store surface the steps need.
type OrderRepository interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	Transition(ctx context.Context, orderID string, from, to orders.Status, note string) (*orders.Order, error)
	MarkFailed(ctx context.Context, orderID, note string) (*orders.Order, error)
	UpdatePayment(ctx context.Context, orderID string, p orders.Payment) error
}

// InventoryRepository is the inventory store surface the steps need.
type InventoryRepository interface {
	GetStock(ctx context.Context, productID string) (int, error)
	DecrementIfAvailable(ctx context.Context, productID string, quantity int, reservationID string) error
}
