package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/porchjobs/marketplace-be/internal/notify"
)

// deliver renders the notification and records it exactly once. A
// database failure is transient and requeues the message; the idempotent
// insert makes the redelivery harmless.
func (w *Worker) deliver(ctx context.Context, d *delivery) error {
	body, err := renderBody(d.Message.Kind)
	if err != nil {
		return err
	}

	inserted, err := w.storage.InsertNotification(ctx, &d.Message, body)
	if err != nil {
		return NewRetryableError(fmt.Errorf("failed to record notification: %w", err))
	}

	if !inserted {
		w.logger.Debug("Notification already delivered, skipping",
			slog.String("notification_id", d.Message.NotificationID),
		)
		return nil
	}

	w.logger.Info("Notification delivered",
		slog.String("notification_id", d.Message.NotificationID),
		slog.String("recipient_id", d.Message.RecipientID),
		slog.String("job_id", d.Message.JobID),
		slog.String("kind", d.Message.Kind),
	)

	return nil
}

// renderBody maps a notification kind to the user-facing message text.
func renderBody(kind string) (string, error) {
	switch kind {
	case notify.KindOfferReceived:
		return "You received a new offer on your job.", nil
	case notify.KindJobOffer:
		return "Your offer was accepted. You're on the job!", nil
	case notify.KindCompletionRequested:
		return "Your helper marked the job as done. Confirm to release payment.", nil
	case notify.KindCompletionConfirmed:
		return "The job was confirmed complete. Payment is on its way.", nil
	case notify.KindJobCancelled:
		return "A job you were helping with was cancelled.", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
