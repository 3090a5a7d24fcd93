package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
	"github.com/imrishuroy/go-orderflow-saga/internal/saga"
)

// Processor runs step messages delivered through the step queue.
type Processor struct {
	handlers map[saga.Name]saga.HandlerFunc
	logger   *slog.Logger
}

// NewProcessor creates a worker processor over one handler per step.
func NewProcessor(handlers map[saga.Name]saga.HandlerFunc, logger *slog.Logger) *Processor {
	return &Processor{handlers: handlers, logger: logger.With("component", "worker")}
}

// Handle receives an SQS batch and runs each message. Messages that fault, or that cannot be
// parsed, are reported back as batch item failures so SQS redelivers only those and eventually
// moves them to the DLQ. Business failures and skips are acknowledged.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.ErrorContext(ctx, "worker error", "message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg aws.StepMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	name, err := saga.ParseName(msg.Step)
	if err != nil {
		return err
	}
	h, ok := p.handlers[name]
	if !ok {
		return fmt.Errorf("no handler for step %s", name)
	}

	res, err := h(ctx, saga.Input{OrderID: msg.OrderID})
	if err != nil {
		return fmt.Errorf("%s for order %s: %w", name, msg.OrderID, err)
	}
	p.logger.DebugContext(ctx, "step message handled",
		"step", name, "order_id", msg.OrderID, "outcome", res.Outcome, "receive_count", rec.Attributes["ApproximateReceiveCount"])
	return nil
}
