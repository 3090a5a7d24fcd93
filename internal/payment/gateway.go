package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrDeclined marks a business decline; wrap it with the reason.
var ErrDeclined = errors.New("payment declined")

type ChargeRequest struct {
	OrderID       string
	CustomerID    string
	Amount        float64
	PaymentMethod string
	// IdempotencyKey is stable per order. Gateways must return the original charge for a repeated
	// key instead of charging again.
	IdempotencyKey string
}

type Charge struct {
	TransactionID string
	Amount        float64
}

// Gateway charges a customer for an order. Implementations return an error wrapping ErrDeclined
// for declines; any other error is treated as a transient fault.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
}

// ApproveAll approves every charge with a positive amount. Repeated idempotency keys get the first
// charge back for the life of the process.
type ApproveAll struct {
	mu      sync.Mutex
	charges map[string]Charge
}

func NewApproveAll() *ApproveAll {
	return &ApproveAll{charges: map[string]Charge{}}
}

func (g *ApproveAll) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	if req.Amount <= 0 {
		return Charge{}, fmt.Errorf("%w: invalid amount %.2f", ErrDeclined, req.Amount)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.charges[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return c, nil
	}
	c := Charge{TransactionID: NewTransactionID(), Amount: req.Amount}
	if req.IdempotencyKey != "" {
		g.charges[req.IdempotencyKey] = c
	}
	return c, nil
}

// DeclineMethods declines charges made with any of the listed payment methods and delegates the
// rest. Useful for exercising the failure path in non-production stages.
type DeclineMethods struct {
	Methods []string
	Next    Gateway
}

func (d DeclineMethods) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	for _, m := range d.Methods {
		if strings.EqualFold(m, req.PaymentMethod) {
			return Charge{}, fmt.Errorf("%w: payment method %s not accepted", ErrDeclined, req.PaymentMethod)
		}
	}
	return d.Next.Charge(ctx, req)
}

func NewTransactionID() string {
	return "TX-" + uuid.NewString()
}
