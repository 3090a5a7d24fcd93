package aws

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsPublisher records step outcomes as CloudWatch custom metrics.
type MetricsPublisher struct {
	client    CloudWatchAPI
	namespace string
	logger    *slog.Logger
	nowFunc   func() time.Time
}

func NewMetricsPublisher(client CloudWatchAPI, namespace string, logger *slog.Logger) *MetricsPublisher {
	return &MetricsPublisher{
		client:    client,
		namespace: namespace,
		logger:    logger.With("component", "metrics"),
		nowFunc:   time.Now,
	}
}

// Record publishes a count and a latency datum for one step invocation. Failures to publish are
// logged and never surface to the step.
func (m *MetricsPublisher) Record(ctx context.Context, step, outcome string, elapsed time.Duration) {
	now := m.nowFunc()
	dims := []cwtypes.Dimension{
		{Name: String("Step"), Value: String(step)},
		{Name: String("Outcome"), Value: String(outcome)},
	}
	count := 1.0
	latency := float64(elapsed.Microseconds()) / 1000

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: String("StepInvocations"),
				Dimensions: dims,
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitCount,
				Value:      &count,
			},
			{
				MetricName: String("StepLatency"),
				Dimensions: dims[:1],
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitMilliseconds,
				Value:      &latency,
			},
		},
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish step metrics", "step", step, "error", err)
	}
}
