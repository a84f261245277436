package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"yaadmarket_backend/internal/allocation"
	"yaadmarket_backend/internal/email"
	"yaadmarket_backend/internal/notification"
	"yaadmarket_backend/internal/scheduler"
	"yaadmarket_backend/internal/whatsapp"
	"yaadmarket_backend/platform/config"
	"yaadmarket_backend/platform/db"
	"yaadmarket_backend/platform/events"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var sender email.Sender = email.NoopSender{}
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(cfg)
	}

	// Sweep-driven assignments notify agents the same way API-driven ones do.
	notificationModule := notification.New(pool, sender, whatsapp.NewClient(cfg, log), cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.SSE().Close()

	allocationModule := allocation.NewModule(pool, eventBus, val, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	go runSweepTicker(ctx, client, cfg, log)

	worker, err := scheduler.NewWorker(cfg, allocationModule.Allocator(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

// runSweepTicker enqueues an allocation sweep at the configured interval so
// requests that stayed open (no eligible agent at intake) get retried.
func runSweepTicker(ctx context.Context, client *scheduler.Client, cfg *config.Config, log *logger.Logger) {
	interval := cfg.GetAllocationSweepInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	payload := scheduler.AllocationSweepPayload{Batch: cfg.GetAllocationSweepBatch()}

	if err := client.EnqueueAllocationSweep(ctx, payload); err != nil {
		log.Warn("failed to enqueue allocation sweep", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.EnqueueAllocationSweep(ctx, payload); err != nil {
				log.Warn("failed to enqueue allocation sweep", "error", err)
			}
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
