package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
)

// decision is a step's verdict on an order. note is written to the order; result carries the
// caller-facing message and step-specific fields.
type decision struct {
	approved bool
	note     string
	result   Result
}

type transition struct {
	name        Name
	from, to    orders.Status
	faultPrefix string // note prefix when a fault marks the order FAILED
	// leaveOnFailure keeps the order's status on declines and faults (notification failures
	// must not undo a fulfilled order).
	leaveOnFailure bool
	decide         func(ctx context.Context, o *orders.Order) (decision, error)
}

var errNoOrderID = errors.New("no order_id provided in event")

func (s *Steps) run(ctx context.Context, in Input, t transition) (Result, error) {
	if in.OrderID == "" {
		return faultResult(in.OrderID, t.name, errNoOrderID)
	}
	log := s.logger.With("step", string(t.name), "order_id", in.OrderID)

	order, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		if !errors.Is(err, orders.ErrNotFound) {
			s.markFailedQuietly(ctx, log, in.OrderID, t, err)
		}
		return faultResult(in.OrderID, t.name, err)
	}
	if order.Status != t.from {
		return skippedResult(in.OrderID, order.Status, t.from), nil
	}

	d, err := t.decide(ctx, order)
	if err != nil {
		s.markFailedQuietly(ctx, log, in.OrderID, t, err)
		return faultResult(in.OrderID, t.name, err)
	}

	res := d.result
	res.OrderID = in.OrderID

	if !d.approved {
		res.Outcome = OutcomeFailed
		if t.leaveOnFailure {
			log.WarnContext(ctx, "step failed, order status unchanged", "note", d.note)
			return res, nil
		}
		if _, err := s.orders.MarkFailed(ctx, in.OrderID, d.note); err != nil {
			if errors.Is(err, orders.ErrStatusMismatch) {
				return skippedResult(in.OrderID, order.Status, t.from), nil
			}
			return faultResult(in.OrderID, t.name, err)
		}
		log.WarnContext(ctx, "order failed", "note", d.note)
		return res, nil
	}

	if _, err := s.orders.Transition(ctx, in.OrderID, t.from, t.to, d.note); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			// a concurrent delivery of the same step won the conditional write
			return skippedResult(in.OrderID, order.Status, t.from), nil
		}
		s.markFailedQuietly(ctx, log, in.OrderID, t, err)
		return faultResult(in.OrderID, t.name, err)
	}
	res.Outcome = OutcomeSuccess
	return res, nil
}

// markFailedQuietly is the best-effort FAILED write after a fault; its own error is only logged.
func (s *Steps) markFailedQuietly(ctx context.Context, log *slog.Logger, orderID string, t transition, cause error) {
	if t.leaveOnFailure {
		return
	}
	if _, err := s.orders.MarkFailed(ctx, orderID, fmt.Sprintf("%s: %v", t.faultPrefix, cause)); err != nil {
		log.WarnContext(ctx, "could not mark order failed", "error", err, "cause", cause)
	}
}

func faultResult(orderID string, name Name, err error) (Result, error) {
	wrapped := fmt.Errorf("%s order %q: %w", name, orderID, err)
	return Result{
		Outcome: OutcomeFault,
		OrderID: orderID,
		Message: err.Error(),
		Err:     wrapped,
	}, wrapped
}

func skippedResult(orderID string, current, expected orders.Status) Result {
	return Result{
		Outcome: OutcomeSkipped,
		OrderID: orderID,
		Message: fmt.Sprintf("Order is %s, expected %s; nothing to do", current, expected),
	}
}
