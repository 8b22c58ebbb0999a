// Package profile persists per-user payment configuration: whether a
// payment method is on file and the payout-account mirror.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/porchjobs/marketplace-be/internal/domain"
)

// Store handles payment-profile database operations.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store instance.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// GetProfile retrieves a user's payment profile.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.PaymentProfile, error) {
	var p domain.PaymentProfile
	query := `
		SELECT user_id, has_payment_method, payout_account_id, payout_account_ready, updated_at
		FROM user_payment_profiles
		WHERE user_id = $1
	`

	err := s.db.GetContext(ctx, &p, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get payment profile: %w", err)
	}

	return &p, nil
}

// UpsertProfile creates or replaces a user's payment profile.
func (s *Store) UpsertProfile(ctx context.Context, p *domain.PaymentProfile) error {
	query := `
		INSERT INTO user_payment_profiles (
			user_id, has_payment_method, payout_account_id, payout_account_ready, updated_at
		) VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			has_payment_method = EXCLUDED.has_payment_method,
			payout_account_id = EXCLUDED.payout_account_id,
			payout_account_ready = EXCLUDED.payout_account_ready,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, p.UserID, p.HasPaymentMethod, p.PayoutAccountID, p.PayoutAccountReady)
	if err != nil {
		return fmt.Errorf("failed to upsert payment profile: %w", err)
	}

	s.logger.Debug("Payment profile upserted",
		slog.String("user_id", p.UserID),
		slog.Bool("has_payment_method", p.HasPaymentMethod),
	)

	return nil
}
