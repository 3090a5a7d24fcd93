// Command stream consumes the orders table change feed and dispatches each record to its step.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-orderflow-saga/internal/app"
	"github.com/imrishuroy/go-orderflow-saga/internal/config"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
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

	lambda.Start(a.Processor().Handle)
}
