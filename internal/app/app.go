// Package app is the composition root: it turns a Config and a set of AWS clients into the stores,
// steps and transports every binary needs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
	"github.com/imrishuroy/go-orderflow-saga/internal/config"
	"github.com/imrishuroy/go-orderflow-saga/internal/dispatch"
	"github.com/imrishuroy/go-orderflow-saga/internal/handlers"
	"github.com/imrishuroy/go-orderflow-saga/internal/idempotency"
	"github.com/imrishuroy/go-orderflow-saga/internal/inventory"
	"github.com/imrishuroy/go-orderflow-saga/internal/notify"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/payment"
	"github.com/imrishuroy/go-orderflow-saga/internal/saga"
)

// functionSuffixes are the deployed step function names, appended to STEP_FUNCTION_PREFIX.
var functionSuffixes = map[saga.Name]string{
	saga.Validate:       "ValidatorFunction",
	saga.CheckInventory: "InventoryFunction",
	saga.ProcessPayment: "PaymentFunction",
	saga.Fulfill:        "FulfillmentFunction",
	saga.Notify:         "NotificationFunction",
}

type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Clients     *aws.AWSClients
	Orders      *orders.Store
	Inventory   *inventory.Store
	Idempotency *idempotency.Store
}

// New builds AWS clients from cfg and wires the stores over them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	clients, err := aws.NewAWSClients(ctx, cfg.AWS.Region, cfg.AWS.EndpointOverride)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	return NewWithClients(cfg, logger, clients), nil
}

func NewWithClients(cfg *config.Config, logger *slog.Logger, clients *aws.AWSClients) *App {
	return &App{
		Config:      cfg,
		Logger:      logger,
		Clients:     clients,
		Orders:      orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.StatusIndex),
		Inventory:   inventory.NewStore(clients.DynamoDB, cfg.Tables.Inventory),
		Idempotency: idempotency.NewStore(clients.DynamoDB, cfg.Tables.Idempotency, cfg.Tables.IdempotencyTTL),
	}
}

// FunctionNames maps step names to deployed Lambda function names.
func FunctionNames(prefix string) map[string]string {
	out := make(map[string]string, len(functionSuffixes))
	for step, suffix := range functionSuffixes {
		out[string(step)] = prefix + "-" + suffix
	}
	return out
}

func (a *App) Gateway() payment.Gateway {
	var g payment.Gateway = payment.NewApproveAll()
	if len(a.Config.Payment.DeclinedMethods) > 0 {
		g = payment.DeclineMethods{Methods: a.Config.Payment.DeclinedMethods, Next: g}
	}
	return g
}

// Notifier delivers through the notification queue when one is configured, otherwise to the log.
func (a *App) Notifier() notify.Notifier {
	if url := a.Config.Steps.NotificationQueueURL; url != "" {
		return notify.NewQueueNotifier(aws.NewPublisher(a.Clients.SQS, url))
	}
	return notify.NewLogNotifier(a.Logger)
}

func (a *App) Steps() *saga.Steps {
	return saga.NewSteps(a.Orders, a.Inventory, a.Gateway(), a.Notifier(), a.Logger)
}

// StepHandler returns the named step wrapped with logging and, when a namespace is set, metrics.
func (a *App) StepHandler(name saga.Name) (saga.HandlerFunc, error) {
	h, err := a.Steps().Handler(name)
	if err != nil {
		return nil, err
	}
	mws := []saga.Middleware{saga.Logging(a.Logger)}
	if a.Config.Namespace != "" {
		mws = append(mws, saga.Metrics(aws.NewMetricsPublisher(a.Clients.CloudWatch, a.Config.Namespace, a.Logger)))
	}
	return saga.Chain(name, h, mws...), nil
}

// Invoker returns the step transport selected by STEP_TRANSPORT.
func (a *App) Invoker() dispatch.Invoker {
	if a.Config.Steps.Transport == config.TransportSQS {
		return aws.NewQueueInvoker(aws.NewPublisher(a.Clients.SQS, a.Config.Steps.QueueURL))
	}
	return aws.NewLambdaInvoker(a.Clients.Lambda, FunctionNames(a.Config.Steps.FunctionPrefix))
}

func (a *App) Processor() *dispatch.Processor {
	return dispatch.NewProcessor(a.Invoker(), a.Logger, a.Config.Dispatch.Concurrency)
}

func (a *App) Sweeper() *dispatch.Sweeper {
	return dispatch.NewSweeper(a.Orders, a.Invoker(), a.Config.Sweep.StaleAfter, a.Config.Sweep.Limit, a.Logger)
}

func (a *App) HandlerConfig() handlers.HandlerConfig {
	return handlers.HandlerConfig{
		Orders:      a.Orders,
		Idempotency: a.Idempotency,
		OrderTTL:    a.Config.OrderTTL,
		Logger:      a.Logger,
		NowFunc:     time.Now,
	}
}
