package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/imrishuroy/go-orderflow-saga/internal/inventory"
	"github.com/imrishuroy/go-orderflow-saga/internal/notify"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/payment"
)

// Steps implements the five saga steps over injected stores and collaborators.
type Steps struct {
	orders     OrderRepository
	inventory  InventoryRepository
	gateway    payment.Gateway
	notifier   notify.Notifier
	logger     *slog.Logger
	trackingID func() string
}

func NewSteps(orderRepo OrderRepository, inventoryRepo InventoryRepository, gateway payment.Gateway, notifier notify.Notifier, logger *slog.Logger) *Steps {
	return &Steps{
		orders:     orderRepo,
		inventory:  inventoryRepo,
		gateway:    gateway,
		notifier:   notifier,
		logger:     logger.With("component", "saga"),
		trackingID: newTrackingID,
	}
}

// Handler returns the bare handler for a step.
func (s *Steps) Handler(name Name) (HandlerFunc, error) {
	switch name {
	case Validate:
		return s.Validate, nil
	case CheckInventory:
		return s.CheckInventory, nil
	case ProcessPayment:
		return s.ProcessPayment, nil
	case Fulfill:
		return s.Fulfill, nil
	case Notify:
		return s.Notify, nil
	}
	return nil, fmt.Errorf("unknown step %q", name)
}

// Validate moves RECEIVED -> VALIDATED when the order passes the business rules.
func (s *Steps) Validate(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, in, transition{
		name:        Validate,
		from:        orders.StatusReceived,
		to:          orders.StatusValidated,
		faultPrefix: "Validation error",
		decide: func(ctx context.Context, o *orders.Order) (decision, error) {
			if reason, ok := ValidateOrder(o); !ok {
				msg := "Validation failed: " + reason
				return decision{note: msg, result: Result{Message: msg}}, nil
			}
			const msg = "Order validated successfully"
			return decision{approved: true, note: msg, result: Result{Message: msg}}, nil
		},
	})
}

// ValidateOrder applies the validation rules in order and returns the first failure.
func ValidateOrder(o *orders.Order) (string, bool) {
	if o.Customer.Email == "" || o.Customer.Name == "" {
		return "Customer information is incomplete", false
	}
	for _, field := range orders.RequiredAddressFields {
		if o.ShippingAddress[field] == "" {
			return "Shipping address is missing " + field, false
		}
	}
	if len(o.Items) == 0 {
		return "Order has no items", false
	}
	if o.Payment.PaymentMethod == "" {
		return "Payment method is required", false
	}
	if !strings.Contains(o.Customer.Email, "@") || !strings.Contains(o.Customer.Email, ".") {
		return "Invalid email format", false
	}
	return "Order is valid", true
}

// CheckInventory moves VALIDATED -> INVENTORY_CHECKED when every item is in stock.
func (s *Steps) CheckInventory(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, in, transition{
		name:        CheckInventory,
		from:        orders.StatusValidated,
		to:          orders.StatusInventoryChecked,
		faultPrefix: "Inventory check error",
		decide: func(ctx context.Context, o *orders.Order) (decision, error) {
			results := make([]ItemAvailability, 0, len(o.Items))
			unavailable := 0
			for _, it := range o.Items {
				stock, err := s.inventory.GetStock(ctx, it.ProductID)
				switch {
				case errors.Is(err, inventory.ErrNotFound):
					stock = 0
				case err != nil:
					return decision{}, fmt.Errorf("stock for %s: %w", it.ProductID, err)
				}
				available := stock >= it.Quantity
				if !available {
					unavailable++
				}
				results = append(results, ItemAvailability{ProductID: it.ProductID, Quantity: it.Quantity, Available: available})
			}

			if unavailable > 0 {
				return decision{
					note:   fmt.Sprintf("Inventory check failed: %d item(s) unavailable", unavailable),
					result: Result{Message: "Some items are unavailable", InventoryResults: results},
				}, nil
			}
			const msg = "All items available in inventory"
			return decision{approved: true, note: msg, result: Result{Message: msg, InventoryResults: results}}, nil
		},
	})
}

// ProcessPayment charges the order total and moves INVENTORY_CHECKED -> PAYMENT_PROCESSED.
func (s *Steps) ProcessPayment(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, in, transition{
		name:        ProcessPayment,
		from:        orders.StatusInventoryChecked,
		to:          orders.StatusPaymentProcessed,
		faultPrefix: "Payment processing error",
		decide: func(ctx context.Context, o *orders.Order) (decision, error) {
			amount := o.AmountDue()
			if o.Payment.Status == orders.PaymentCompleted && o.Payment.TransactionID != "" {
				// charged by an earlier delivery whose transition was lost
				if o.Payment.Amount > 0 {
					amount = o.Payment.Amount
				}
				return paidDecision(o.Payment.TransactionID, amount), nil
			}
			charge, err := s.gateway.Charge(ctx, payment.ChargeRequest{
				OrderID:        o.OrderID,
				CustomerID:     o.Customer.CustomerID,
				Amount:         amount,
				PaymentMethod:  o.Payment.PaymentMethod,
				IdempotencyKey: "payment-" + o.OrderID,
			})
			if errors.Is(err, payment.ErrDeclined) {
				if err := s.orders.UpdatePayment(ctx, o.OrderID, orders.Payment{Status: orders.PaymentFailed, Amount: o.TotalAmount}); err != nil {
					return decision{}, fmt.Errorf("record failed payment: %w", err)
				}
				msg := "Payment failed: " + err.Error()
				return decision{note: msg, result: Result{Message: msg}}, nil
			}
			if err != nil {
				return decision{}, fmt.Errorf("charge: %w", err)
			}

			if err := s.orders.UpdatePayment(ctx, o.OrderID, orders.Payment{
				TransactionID: charge.TransactionID,
				Amount:        charge.Amount,
				Status:        orders.PaymentCompleted,
			}); err != nil {
				return decision{}, fmt.Errorf("record payment %s: %w", charge.TransactionID, err)
			}
			return paidDecision(charge.TransactionID, charge.Amount), nil
		},
	})
}

func paidDecision(transactionID string, amount float64) decision {
	const msg = "Payment processed successfully"
	return decision{approved: true, note: msg, result: Result{
		Message:       msg,
		TransactionID: transactionID,
		Amount:        amount,
	}}
}

// Fulfill reserves stock for every item and moves PAYMENT_PROCESSED -> FULFILLED. Each line is
// reserved at most once per order, so a redelivery after a lost transition does not take stock
// again. Items already decremented are not restored when a later item fails.
func (s *Steps) Fulfill(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, in, transition{
		name:        Fulfill,
		from:        orders.StatusPaymentProcessed,
		to:          orders.StatusFulfilled,
		faultPrefix: "Fulfillment error",
		decide: func(ctx context.Context, o *orders.Order) (decision, error) {
			failed := 0
			for i, it := range o.Items {
				// a line reserved by an earlier delivery of this step is already taken from stock
				err := s.inventory.DecrementIfAvailable(ctx, it.ProductID, it.Quantity, reservationID(o.OrderID, i))
				switch {
				case errors.Is(err, inventory.ErrAlreadyReserved):
				case errors.Is(err, inventory.ErrInsufficientStock):
					failed++
				case err != nil:
					return decision{}, fmt.Errorf("decrement %s: %w", it.ProductID, err)
				}
			}

			if failed > 0 {
				msg := fmt.Sprintf("Fulfillment failed: Failed to update inventory for %d item(s)", failed)
				return decision{note: msg, result: Result{Message: msg}}, nil
			}
			tracking := s.trackingID()
			return decision{
				approved: true,
				note:     "Order fulfilled. Tracking ID: " + tracking,
				result:   Result{Message: "Order fulfilled successfully", TrackingID: tracking},
			}, nil
		},
	})
}

// Notify tells the customer and moves FULFILLED -> COMPLETED. A failed notification leaves the order
// FULFILLED.
func (s *Steps) Notify(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, in, transition{
		name:           Notify,
		from:           orders.StatusFulfilled,
		to:             orders.StatusCompleted,
		leaveOnFailure: true,
		decide: func(ctx context.Context, o *orders.Order) (decision, error) {
			msg := notify.OrderConfirmation(o.OrderID, o.Customer.Email, o.Customer.Name, o.Notes, o.AmountDue())
			id, err := s.notifier.Send(ctx, msg)
			if err != nil {
				text := "Notification failed: " + err.Error()
				return decision{note: text, result: Result{Message: text}}, nil
			}
			return decision{
				approved: true,
				note:     "Notification sent to customer: " + id,
				result:   Result{Message: "Notification sent successfully", MessageID: id},
			}, nil
		},
	})
}

func reservationID(orderID string, line int) string {
	return fmt.Sprintf("%s#%d", orderID, line)
}

func newTrackingID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRK-" + strings.ToUpper(hex[:12])
}
