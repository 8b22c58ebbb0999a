package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/porchjobs/marketplace-be/internal/notify"
)

// Storage records delivered notifications.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance.
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// InsertNotification records one delivery, keyed by the message's
// notification id so AMQP redeliveries cannot duplicate rows. Returns
// false when the notification was already recorded.
func (s *Storage) InsertNotification(ctx context.Context, msg *notify.Message, body string) (bool, error) {
	query := `
		INSERT INTO notifications (
			notification_id, recipient_id, job_id, kind, body, created_at, delivered_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW()
		)
		ON CONFLICT (notification_id) DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		msg.NotificationID,
		msg.RecipientID,
		msg.JobID,
		msg.Kind,
		body,
		msg.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}
