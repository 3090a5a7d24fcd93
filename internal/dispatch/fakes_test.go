package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

type invocation struct {
	step, orderID string
}

type fakeInvoker struct {
	mu    sync.Mutex
	calls []invocation
	errs  map[string]error // by order id
	hook  func(orderID string)
}

func (f *fakeInvoker) Invoke(ctx context.Context, step, orderID string) error {
	if f.hook != nil {
		f.hook(orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{step, orderID})
	return f.errs[orderID]
}

func (f *fakeInvoker) invoked() []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]invocation(nil), f.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func orderImage(orderID, status string) map[string]events.DynamoDBAttributeValue {
	img := map[string]events.DynamoDBAttributeValue{
		"created_at":   events.NewStringAttribute("2025-03-01T10:00:00.000000Z"),
		"total_amount": events.NewNumberAttribute("89.97"),
		"customer": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"email": events.NewStringAttribute("ada@example.com"),
			"name":  events.NewStringAttribute("Ada"),
		}),
		"items": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
				"product_id": events.NewStringAttribute("p-1"),
				"quantity":   events.NewNumberAttribute("2"),
				"unit_price": events.NewNumberAttribute("19.99"),
			}),
		}),
	}
	if orderID != "" {
		img["order_id"] = events.NewStringAttribute(orderID)
	}
	if status != "" {
		img["status"] = events.NewStringAttribute(status)
	}
	return img
}

func record(eventName string, image map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "evt-" + eventName,
		EventName: eventName,
		Change:    events.DynamoDBStreamRecord{NewImage: image},
	}
}
