package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer configures QoS and starts consuming the notification queue.
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	// prefetch_count bounds unacknowledged messages per consumer;
	// prefetch_size 0 means no byte limit, global false means per-consumer
	err := channel.Qos(
		w.prefetchCount, // prefetch count from config
		0,               // prefetch size
		false,           // global
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.rabbitClient.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("Notification consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// dispatch parses AMQP deliveries and feeds them to the pool. Malformed
// bodies are nacked without requeue so they end up in the DLQ instead of
// looping forever.
func (w *Worker) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Notification dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Notification dispatcher stopped - context canceled")
			return

		case amqpDelivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			d := &delivery{DeliveryTag: amqpDelivery.DeliveryTag}
			if err := json.Unmarshal(amqpDelivery.Body, &d.Message); err != nil {
				w.logger.Error("Failed to parse notification message",
					slog.String("error", err.Error()),
					slog.String("body", string(amqpDelivery.Body)),
				)
				if nackErr := amqpDelivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if d.Message.NotificationID == "" || d.Message.RecipientID == "" {
				w.logger.Error("Notification message missing required fields",
					slog.String("body", string(amqpDelivery.Body)),
				)
				if nackErr := amqpDelivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK invalid message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.deliveries <- d:
				w.logger.Debug("Notification dispatched to pool",
					slog.String("notification_id", d.Message.NotificationID),
					slog.Uint64("delivery_tag", d.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Dispatcher stopped while dispatching")
				// Requeue so the notification is not lost on shutdown
				if nackErr := amqpDelivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
