package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	allocservice "yaadmarket_backend/internal/allocation/service"
	"yaadmarket_backend/platform/config"
	"yaadmarket_backend/platform/logger"
)

// Worker consumes background tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	allocator *allocservice.Allocator
	batch     int
	log       *logger.Logger
}

// WorkerConfig combines the config interfaces the worker needs.
type WorkerConfig interface {
	config.SchedulerConfig
	config.AllocationConfig
}

// NewWorker creates an asynq worker wired to the allocation engine.
func NewWorker(cfg WorkerConfig, allocator *allocservice.Allocator, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		allocator: allocator,
		batch:     cfg.GetAllocationSweepBatch(),
		log:       log,
	}

	mux.HandleFunc(TaskAllocationSweep, w.handleAllocationSweep)

	return w, nil
}

func (w *Worker) handleAllocationSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAllocationSweepPayload(task)
	if err != nil {
		return err
	}

	batch := payload.Batch
	if batch < 1 {
		batch = w.batch
	}

	result, err := w.allocator.SweepUnassigned(ctx, batch)
	if err != nil {
		return err
	}

	if result.Scanned > 0 {
		w.log.Info("allocation sweep finished",
			"scanned", result.Scanned,
			"assigned", result.Assigned,
			"skipped", result.Skipped,
		)
	}
	return nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
