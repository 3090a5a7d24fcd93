package saga

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
)

// Middleware decorates a step handler.
type Middleware func(name Name, next HandlerFunc) HandlerFunc

// Chain wraps h so that mws[0] is the outermost layer.
func Chain(name Name, h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](name, h)
	}
	return h
}

// Logging logs the start and end of every step run with its duration and the Lambda request id.
func Logging(logger *slog.Logger) Middleware {
	return func(name Name, next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, in Input) (Result, error) {
			log := logger.With("step", string(name), "order_id", in.OrderID)
			if lc, ok := lambdacontext.FromContext(ctx); ok {
				log = log.With("request_id", lc.AwsRequestID)
			}
			log.InfoContext(ctx, "step started")

			start := time.Now()
			res, err := next(ctx, in)
			attrs := []any{
				"outcome", string(res.Outcome),
				"message", res.Message,
				"duration_ms", time.Since(start).Milliseconds(),
			}

			switch {
			case err != nil:
				log.ErrorContext(ctx, "step fault", append(attrs, "error", err)...)
			case res.Outcome == OutcomeFailed:
				log.WarnContext(ctx, "step failed", attrs...)
			default:
				log.InfoContext(ctx, "step completed", attrs...)
			}
			return res, err
		}
	}
}

// Recorder receives per-step outcome and latency samples.
type Recorder interface {
	Record(ctx context.Context, step, outcome string, elapsed time.Duration)
}

func Metrics(rec Recorder) Middleware {
	return func(name Name, next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, in Input) (Result, error) {
			start := time.Now()
			res, err := next(ctx, in)
			outcome := res.Outcome
			if err != nil {
				outcome = OutcomeFault
			}
			rec.Record(ctx, string(name), string(outcome), time.Since(start))
			return res, err
		}
	}
}
