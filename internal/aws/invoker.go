package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// StepPayload is the event every step handler receives.
type StepPayload struct {
	OrderID string `json:"order_id"`
}

// StepMessage is the SQS body produced by QueueInvoker and consumed by the worker.
type StepMessage struct {
	Step    string `json:"step"`
	OrderID string `json:"order_id"`
}

// LambdaInvoker triggers step functions with InvocationType=Event. Lambda queues the event and owns
// retries (two by default) and the on-failure destination.
type LambdaInvoker struct {
	client    LambdaAPI
	functions map[string]string // step name -> function name
}

func NewLambdaInvoker(client LambdaAPI, functions map[string]string) *LambdaInvoker {
	return &LambdaInvoker{client: client, functions: functions}
}

func (i *LambdaInvoker) Invoke(ctx context.Context, step, orderID string) error {
	fn, ok := i.functions[step]
	if !ok {
		return fmt.Errorf("no function configured for step %q", step)
	}
	payload, err := json.Marshal(StepPayload{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   String(fn),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", fn, err)
	}
	if out.FunctionError != nil {
		return fmt.Errorf("invoke %s: function error %s", fn, *out.FunctionError)
	}
	return nil
}

// QueueInvoker sends step messages to an SQS queue instead of invoking Lambda directly.
type QueueInvoker struct {
	publisher *Publisher
}

func NewQueueInvoker(publisher *Publisher) *QueueInvoker {
	return &QueueInvoker{publisher: publisher}
}

func (i *QueueInvoker) Invoke(ctx context.Context, step, orderID string) error {
	body, err := json.Marshal(StepMessage{Step: step, OrderID: orderID})
	if err != nil {
		return fmt.Errorf("marshal step message: %w", err)
	}
	attrs := map[string]string{
		"step":     step,
		"order_id": orderID,
	}
	if _, err := i.publisher.Send(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("enqueue step %s: %w", step, err)
	}
	return nil
}
