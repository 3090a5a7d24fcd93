// Command worker consumes the step queue when STEP_TRANSPORT=sqs.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-orderflow-saga/internal/app"
	"github.com/imrishuroy/go-orderflow-saga/internal/config"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/saga"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	handlers := make(map[saga.Name]saga.HandlerFunc, len(saga.Names()))
	for _, name := range saga.Names() {
		h, err := a.StepHandler(name)
		if err != nil {
			log.Fatalf("failed to build step %s: %v", name, err)
		}
		handlers[name] = h
	}
	p := NewProcessor(handlers, logger)

	// If RUN_LOCAL=true, run a single message from LOCAL_SQS_BODY for local testing.
	if cfg.RunLocal {
		body := `{"step":"validate","order_id":"local-order-1"}`
		if v := os.Getenv("LOCAL_SQS_BODY"); v != "" {
			body = v
		}
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.Fatalf("local handler failed: %v %+v", err, resp.BatchItemFailures)
		}
		return
	}

	lambda.Start(p.Handle)
}
