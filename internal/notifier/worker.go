// Package notifier consumes notification messages off the queue and
// records their delivery. It is deliberately dumb: render a per-kind
// message, write it down once, ack.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/porchjobs/marketplace-be/internal/notify"
	"github.com/porchjobs/marketplace-be/shared/postgresql"
	"github.com/porchjobs/marketplace-be/shared/rabbitmq"
)

// Config holds notifier worker configuration
type Config struct {
	Logger        *slog.Logger
	DBClient      *postgresql.Client
	RabbitClient  *rabbitmq.Client
	Concurrency   int
	PrefetchCount int
}

// Worker consumes the notification queue through a pool of goroutines.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	storage       *Storage
	concurrency   int
	prefetchCount int
	workerID      string
	deliveries    chan *delivery
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// delivery pairs a parsed message with its AMQP delivery tag.
type delivery struct {
	Message     notify.Message
	DeliveryTag uint64
}

// NewWorker creates a new notifier worker instance.
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		storage:       NewStorage(cfg.DBClient.GetDB(), cfg.Logger),
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		workerID:      fmt.Sprintf("notifier-%s", uuid.New().String()[:8]),
		deliveries:    make(chan *delivery),
		stopChan:      make(chan struct{}),
	}
}

// Start consumes the queue until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting notifier worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	amqpDeliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnPool(ctx)
	w.dispatch(ctx, amqpDeliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping notifier worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Notifier worker stopped")
}
