// Command step runs a single saga step, selected by STEP_NAME, as an asynchronously invoked Lambda.
package main

import (
	"context"
	"log"

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

	name, err := saga.ParseName(cfg.Steps.Name)
	if err != nil {
		log.Fatalf("STEP_NAME: %v", err)
	}

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	h, err := a.StepHandler(name)
	if err != nil {
		log.Fatalf("failed to build step %s: %v", name, err)
	}

	// a returned error makes Lambda retry the event and, once retries run out, route it to the
	// function's on-failure destination
	lambda.Start(func(ctx context.Context, in saga.Input) (saga.Result, error) {
		return h(ctx, in)
	})
}
