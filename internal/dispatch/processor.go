package dispatch

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/saga"
)

// Stream event names the processor reacts to.
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
)

// Invoker starts a step for an order without waiting for it to finish.
type Invoker interface {
	Invoke(ctx context.Context, step, orderID string) error
}

type RecordResult struct {
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Step    string `json:"step,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type BatchResult struct {
	ProcessedCount int            `json:"processed_count"`
	Results        []RecordResult `json:"results"`
}

// Processor routes change-feed records to the step bound to the order's new status.
type Processor struct {
	invoker     Invoker
	logger      *slog.Logger
	concurrency int
}

func NewProcessor(invoker Invoker, logger *slog.Logger, concurrency int) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		invoker:     invoker,
		logger:      logger.With("component", "dispatch"),
		concurrency: concurrency,
	}
}

// Handle processes a stream batch. Failures are reported per record and never fail the batch, so the
// returned error is always nil.
func (p *Processor) Handle(ctx context.Context, ev events.DynamoDBEvent) (BatchResult, error) {
	slots := make([]*RecordResult, len(ev.Records))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, rec := range ev.Records {
		if rec.EventName != EventInsert && rec.EventName != EventModify {
			continue
		}
		if len(rec.Change.NewImage) == 0 {
			continue
		}

		route, err := DecodeRoute(rec.Change.NewImage)
		if err != nil {
			p.logger.ErrorContext(ctx, "error processing record", "event_id", rec.EventID, "error", err)
			slots[i] = &RecordResult{Message: "Failed to process record", Error: err.Error()}
			continue
		}
		if route.OrderID == "" || route.Status == "" {
			p.logger.WarnContext(ctx, "missing order_id or status in record", "event_id", rec.EventID)
			continue
		}

		step, ok := saga.StepFor(route.Status)
		if !ok {
			slots[i] = &RecordResult{
				OrderID: route.OrderID,
				Status:  string(route.Status),
				Message: "No processing required for this status",
			}
			continue
		}

		i, orderID, status := i, route.OrderID, route.Status
		g.Go(func() error {
			slots[i] = p.invoke(ctx, orderID, status, step)
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{Results: make([]RecordResult, 0, len(slots))}
	for _, r := range slots {
		if r != nil {
			out.Results = append(out.Results, *r)
		}
	}
	out.ProcessedCount = len(out.Results)
	return out, nil
}

func (p *Processor) invoke(ctx context.Context, orderID string, status orders.Status, step saga.Name) *RecordResult {
	res := &RecordResult{OrderID: orderID, Status: string(status), Step: string(step)}
	if err := p.invoker.Invoke(ctx, string(step), orderID); err != nil {
		p.logger.ErrorContext(ctx, "failed to invoke step",
			"order_id", orderID, "status", status, "step", step, "error", err)
		res.Message = "Failed to process order"
		res.Error = err.Error()
		return res
	}
	p.logger.InfoContext(ctx, "invoked step", "order_id", orderID, "status", status, "step", step)
	res.Message = "Successfully invoked step"
	return res
}
