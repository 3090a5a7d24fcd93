package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/saga"
)

// OrderLister lists orders in a status, newest first.
type OrderLister interface {
	QueryByStatus(ctx context.Context, status orders.Status, limit int) ([]orders.Order, error)
}

type SweepResult struct {
	Scanned      int `json:"scanned"`
	Redispatched int `json:"redispatched"`
}

// Sweeper re-invokes the bound step for orders that have sat in a non-terminal status longer than
// staleAfter, i.e. whose asynchronous invocation was lost after the transport gave up retrying.
// Steps skip orders that moved on in the meantime, so a spurious re-dispatch is harmless.
type Sweeper struct {
	orders     OrderLister
	invoker    Invoker
	staleAfter time.Duration
	limit      int
	logger     *slog.Logger
	nowFunc    func() time.Time
}

func NewSweeper(lister OrderLister, invoker Invoker, staleAfter time.Duration, limit int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		orders:     lister,
		invoker:    invoker,
		staleAfter: staleAfter,
		limit:      limit,
		logger:     logger.With("component", "sweeper"),
		nowFunc:    time.Now,
	}
}

// Sweep runs one pass over every status that has a step. Errors for one status or order do not stop
// the pass; they are joined into the returned error.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		res  SweepResult
		errs []error
	)
	cutoff := s.nowFunc().Add(-s.staleAfter)

	for _, status := range orders.AllStatuses() {
		step, ok := saga.StepFor(status)
		if !ok {
			continue
		}
		list, err := s.orders.QueryByStatus(ctx, status, s.limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", status, err))
			continue
		}
		res.Scanned += len(list)

		for _, o := range list {
			if o.UpdatedTime().After(cutoff) {
				continue
			}
			if err := s.invoker.Invoke(ctx, string(step), o.OrderID); err != nil {
				errs = append(errs, fmt.Errorf("redispatch %s to %s: %w", o.OrderID, step, err))
				continue
			}
			res.Redispatched++
			s.logger.InfoContext(ctx, "redispatched stale order",
				"order_id", o.OrderID, "status", status, "step", step, "updated_at", o.UpdatedAt)
		}
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
