// Command sweeper re-dispatches orders stuck in a non-terminal status. On Lambda it runs on an
// EventBridge schedule; with RUN_LOCAL=true it runs its own cron loop.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/robfig/cron/v3"

	"github.com/imrishuroy/go-orderflow-saga/internal/app"
	"github.com/imrishuroy/go-orderflow-saga/internal/config"
	"github.com/imrishuroy/go-orderflow-saga/internal/dispatch"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
)

func handleSchedule(s *dispatch.Sweeper, logger *slog.Logger) func(ctx context.Context, ev events.CloudWatchEvent) (dispatch.SweepResult, error) {
	return func(ctx context.Context, ev events.CloudWatchEvent) (dispatch.SweepResult, error) {
		logger.InfoContext(ctx, "sweep triggered", "event_id", ev.ID, "source", ev.Source)
		return s.Sweep(ctx)
	}
}

// schedule registers the sweep on c. Passes never overlap: a run that starts while the previous
// one is still going is skipped.
func schedule(c *cron.Cron, spec string, s *dispatch.Sweeper, logger *slog.Logger) (cron.EntryID, error) {
	job := cron.FuncJob(func() {
		res, err := s.Sweep(context.Background())
		if err != nil {
			logger.Error("sweep finished with errors", "error", err, "scanned", res.Scanned, "redispatched", res.Redispatched)
			return
		}
		logger.Info("sweep finished", "scanned", res.Scanned, "redispatched", res.Redispatched)
	})
	return c.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job))
}

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
	sweeper := a.Sweeper()

	if cfg.RunLocal {
		c := cron.New()
		if _, err := schedule(c, cfg.Sweep.Schedule, sweeper, logger); err != nil {
			log.Fatalf("invalid SWEEP_SCHEDULE %q: %v", cfg.Sweep.Schedule, err)
		}
		logger.Info("running local sweeper", "schedule", cfg.Sweep.Schedule)
		c.Start()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		<-c.Stop().Done()
		return
	}

	lambda.Start(handleSchedule(sweeper, logger))
}
