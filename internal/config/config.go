package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Step transports understood by the dispatcher.
const (
	TransportLambda = "lambda"
	TransportSQS    = "sqs"
)

type Config struct {
	AWS       AWSConfig
	Tables    TableConfig
	Steps     StepConfig
	Dispatch  DispatchConfig
	Sweep     SweepConfig
	Payment   PaymentConfig
	HTTPAddr  string
	LogLevel  string
	RunLocal  bool
	OrderTTL  time.Duration
	Namespace string // CloudWatch metrics namespace; empty disables metrics
}

type AWSConfig struct {
	Region           string
	EndpointOverride string
}

type TableConfig struct {
	Orders         string
	StatusIndex    string
	Inventory      string
	Idempotency    string
	IdempotencyTTL time.Duration
}

type StepConfig struct {
	Name                 string // STEP_NAME for cmd/step
	Transport            string
	FunctionPrefix       string
	QueueURL             string
	NotificationQueueURL string
}

type DispatchConfig struct {
	Concurrency int
}

type PaymentConfig struct {
	DeclinedMethods []string // payment methods the default gateway refuses
}

type SweepConfig struct {
	StaleAfter time.Duration
	Limit      int
	Schedule   string
}

func Load() (*Config, error) {
	// a missing .env is normal when running on Lambda
	_ = godotenv.Load()

	var errs []error
	duration := func(key string, defaultValue time.Duration) time.Duration {
		d, err := getEnvDuration(key, defaultValue)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := &Config{
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", "us-east-1"),
			EndpointOverride: os.Getenv("AWS_ENDPOINT_OVERRIDE"),
		},
		Tables: TableConfig{
			Orders:         getEnv("ORDERS_TABLE", "OrdersTable"),
			StatusIndex:    getEnv("ORDERS_STATUS_INDEX", "status-index"),
			Inventory:      getEnv("INVENTORY_TABLE", "InventoryTable"),
			Idempotency:    getEnv("IDEMPOTENCY_TABLE", "IdempotencyTable"),
			IdempotencyTTL: duration("IDEMPOTENCY_TTL", 48*time.Hour),
		},
		Steps: StepConfig{
			Name:                 os.Getenv("STEP_NAME"),
			Transport:            getEnv("STEP_TRANSPORT", TransportLambda),
			FunctionPrefix:       getEnv("STEP_FUNCTION_PREFIX", "serverless-orch-api"),
			QueueURL:             os.Getenv("STEP_QUEUE_URL"),
			NotificationQueueURL: os.Getenv("NOTIFICATION_QUEUE_URL"),
		},
		Dispatch: DispatchConfig{
			Concurrency: getEnvInt("DISPATCH_CONCURRENCY", 10),
		},
		Sweep: SweepConfig{
			StaleAfter: duration("SWEEP_STALE_AFTER", 15*time.Minute),
			Limit:      getEnvInt("SWEEP_LIMIT", 50),
			Schedule:   getEnv("SWEEP_SCHEDULE", "@every 5m"),
		},
		Payment: PaymentConfig{
			DeclinedMethods: getEnvList("PAYMENT_DECLINED_METHODS"),
		},
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		RunLocal:  os.Getenv("RUN_LOCAL") == "true",
		OrderTTL:  duration("ORDER_TTL", 7*24*time.Hour),
		Namespace: getEnvAllowEmpty("METRICS_NAMESPACE", "OrderSaga"),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Steps.Transport {
	case TransportLambda:
	case TransportSQS:
		if c.Steps.QueueURL == "" {
			return fmt.Errorf("STEP_QUEUE_URL is required when STEP_TRANSPORT=%s", TransportSQS)
		}
	default:
		return fmt.Errorf("unknown STEP_TRANSPORT %q", c.Steps.Transport)
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive, got %d", c.Dispatch.Concurrency)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty is getEnv for settings where an explicitly empty value means "off".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}
