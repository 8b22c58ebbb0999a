// Package notify publishes job-transition notifications onto the message
// bus. Delivery is best-effort: the engine never blocks on this channel.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/porchjobs/marketplace-be/shared/rabbitmq"
)

// Notification kinds sent to the counterpart user on a transition.
const (
	KindOfferReceived       = "offer-received"
	KindJobOffer            = "job-offer"
	KindCompletionRequested = "completion-requested"
	KindCompletionConfirmed = "completion-confirmed"
	KindJobCancelled        = "job-cancelled"
)

// Message is the wire format consumed by the notifier service. The
// NotificationID makes redelivery idempotent on the consumer side.
type Message struct {
	NotificationID string    `json:"notification_id"`
	RecipientID    string    `json:"recipient_id"`
	JobID          string    `json:"job_id"`
	Kind           string    `json:"kind"`
	CreatedAt      time.Time `json:"created_at"`
}

// Publisher sends notification messages through RabbitMQ.
type Publisher struct {
	rabbitClient *rabbitmq.Client
	logger       *slog.Logger
}

// NewPublisher creates a new Publisher instance.
func NewPublisher(rabbitClient *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		rabbitClient: rabbitClient,
		logger:       logger,
	}
}

// Notify publishes one notification for recipientID about jobID. Messages
// are routed per kind so consumers can bind selectively.
func (p *Publisher) Notify(ctx context.Context, recipientID, jobID, kind string) error {
	msg := Message{
		NotificationID: uuid.New().String(),
		RecipientID:    recipientID,
		JobID:          jobID,
		Kind:           kind,
		CreatedAt:      time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.rabbitClient.PublishWithRetry(ctx, RoutingKey(kind), body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.logger.Debug("Notification published",
		slog.String("notification_id", msg.NotificationID),
		slog.String("recipient_id", recipientID),
		slog.String("job_id", jobID),
		slog.String("kind", kind),
	)

	return nil
}

// RoutingKey returns the per-kind routing key used on the exchange.
func RoutingKey(kind string) string {
	return "notification." + kind
}
