package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// spawnPool starts the delivery goroutines.
func (w *Worker) spawnPool(ctx context.Context) {
	w.logger.Info("Spawning notifier pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.deliverLoop(ctx, i)
	}
}

// deliverLoop is the main processing loop for each pool goroutine.
func (w *Worker) deliverLoop(ctx context.Context, num int) {
	defer w.wg.Done()

	name := fmt.Sprintf("%s-%d", w.workerID, num)
	w.logger.Info("Notifier goroutine started",
		slog.String("worker_name", name),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Notifier goroutine stopping - stopChan closed",
				slog.String("worker_name", name),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Notifier goroutine stopping - context canceled",
				slog.String("worker_name", name),
			)
			return

		case d, ok := <-w.deliveries:
			if !ok {
				return
			}

			err := w.deliver(ctx, d)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", name),
					slog.String("notification_id", d.Message.NotificationID),
				)
				continue
			}

			if err != nil {
				requeue := shouldRequeue(err)
				w.logger.Error("Notification delivery failed",
					slog.String("worker_name", name),
					slog.String("notification_id", d.Message.NotificationID),
					slog.Bool("requeue", requeue),
					slog.String("error", err.Error()),
				)

				if nackErr := channel.Nack(d.DeliveryTag, false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", name),
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ackErr := channel.Ack(d.DeliveryTag, false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", name),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}

// shouldRequeue decides the NACK requeue flag from the error type.
func shouldRequeue(err error) bool {
	if errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnknownKind) {
		return false
	}

	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
