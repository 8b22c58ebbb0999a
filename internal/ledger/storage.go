// Package ledger is the single source of truth for job and offer state.
// Transition correctness rests on ConditionalUpdate and AcceptOffer:
// status-guarded writes that fail with ErrStaleState / ErrAlreadyAccepted
// when a concurrent transition won the race.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/porchjobs/marketplace-be/internal/domain"
)

const jobColumns = `
	job_id, creator_id, helper_id, title, description,
	payment_type, amount_cents, tip_cents, status,
	payment_intent_id, payment_status,
	created_at, accepted_at, started_at, helper_done_at,
	completed_at, cancelled_at, updated_at
`

// Store handles all database operations for jobs and offers.
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

// CreateJob inserts a new open job.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, creator_id, title, description,
			payment_type, amount_cents, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.CreatorID,
		job.Title,
		job.Description,
		job.PaymentType,
		job.AmountCents,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by its ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	CreatorID   string
	HelperID    string
	Status      string
	PaymentType string
	PageSize    int
	Cursor      *JobCursor
}

// JobCursor is a keyset-pagination position.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns jobs matching filter, newest first, fetching one extra
// row so the caller can detect whether more results exist.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.CreatorID != "" {
		query += fmt.Sprintf(" AND creator_id = $%d", argIdx)
		args = append(args, filter.CreatorID)
		argIdx++
	}

	if filter.HelperID != "" {
		query += fmt.Sprintf(" AND helper_id = $%d", argIdx)
		args = append(args, filter.HelperID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.PaymentType != "" {
		query += fmt.Sprintf(" AND payment_type = $%d", argIdx)
		args = append(args, filter.PaymentType)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// AppendOffer inserts a helper's offer for an open job.
func (s *Store) AppendOffer(ctx context.Context, offer *domain.Offer) error {
	query := `
		INSERT INTO offers (
			offer_id, job_id, helper_id, amount_cents, note, accepted, created_at
		) VALUES (
			$1, $2, $3, $4, $5, FALSE, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		offer.OfferID,
		offer.JobID,
		offer.HelperID,
		offer.AmountCents,
		offer.Note,
		offer.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append offer: %w", err)
	}

	return nil
}

// GetOffer retrieves one offer scoped to its job.
func (s *Store) GetOffer(ctx context.Context, jobID, offerID string) (*domain.Offer, error) {
	var offer domain.Offer
	query := `
		SELECT offer_id, job_id, helper_id, amount_cents, note, accepted, created_at
		FROM offers
		WHERE job_id = $1 AND offer_id = $2
	`

	err := s.db.GetContext(ctx, &offer, query, jobID, offerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}

	return &offer, nil
}

// ListOffers returns a job's offers in submission order.
func (s *Store) ListOffers(ctx context.Context, jobID string) ([]domain.Offer, error) {
	var offers []domain.Offer
	query := `
		SELECT offer_id, job_id, helper_id, amount_cents, note, accepted, created_at
		FROM offers
		WHERE job_id = $1
		ORDER BY created_at ASC, offer_id ASC
	`

	err := s.db.SelectContext(ctx, &offers, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	return offers, nil
}

// AcceptOffer atomically assigns the offer's helper to an OPEN job using
// a status-guarded update, so exactly one offer can win. Returns the
// updated job on success, ErrAlreadyAccepted if the job left OPEN first.
func (s *Store) AcceptOffer(ctx context.Context, jobID string, offer *domain.Offer, now time.Time) (*domain.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin accept transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE jobs
		SET status = $1,
		    helper_id = $2,
		    amount_cents = $3,
		    accepted_at = $4,
		    updated_at = $4
		WHERE job_id = $5
		  AND status = $6
		RETURNING ` + jobColumns

	var job domain.Job
	err = tx.QueryRowxContext(
		ctx, query,
		domain.JobStatusAccepted,
		offer.HelperID,
		offer.AmountCents,
		now,
		jobID,
		domain.JobStatusOpen,
	).StructScan(&job)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to accept offer - job no longer open",
				slog.String("job_id", jobID),
				slog.String("offer_id", offer.OfferID),
			)
			return nil, domain.ErrAlreadyAccepted
		}
		return nil, fmt.Errorf("failed to accept offer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE offers SET accepted = TRUE WHERE offer_id = $1`, offer.OfferID); err != nil {
		return nil, fmt.Errorf("failed to mark offer accepted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit accept transaction: %w", err)
	}

	s.logger.Info("Offer accepted",
		slog.String("job_id", jobID),
		slog.String("offer_id", offer.OfferID),
		slog.String("helper_id", offer.HelperID),
	)

	return &job, nil
}

// ConditionalUpdate applies patch to a job only if its status still equals
// expectedStatus. Returns the updated job, ErrStaleState on a lost race,
// or ErrJobNotFound if the job does not exist.
func (s *Store) ConditionalUpdate(ctx context.Context, jobID, expectedStatus string, patch domain.JobPatch) (*domain.Job, error) {
	set := "updated_at = NOW()"
	args := []interface{}{}
	argIdx := 1

	appendSet := func(column string, value interface{}) {
		set += fmt.Sprintf(", %s = $%d", column, argIdx)
		args = append(args, value)
		argIdx++
	}

	if patch.Status != nil {
		appendSet("status", *patch.Status)
	}
	if patch.HelperID != nil {
		appendSet("helper_id", *patch.HelperID)
	}
	if patch.AmountCents != nil {
		appendSet("amount_cents", *patch.AmountCents)
	}
	if patch.TipCents != nil {
		appendSet("tip_cents", *patch.TipCents)
	}
	if patch.PaymentIntentID != nil {
		appendSet("payment_intent_id", *patch.PaymentIntentID)
	}
	if patch.PaymentStatus != nil {
		appendSet("payment_status", *patch.PaymentStatus)
	}
	if patch.AcceptedAt != nil {
		appendSet("accepted_at", *patch.AcceptedAt)
	}
	if patch.StartedAt != nil {
		appendSet("started_at", *patch.StartedAt)
	}
	if patch.HelperDoneAt != nil {
		appendSet("helper_done_at", *patch.HelperDoneAt)
	}
	if patch.CompletedAt != nil {
		appendSet("completed_at", *patch.CompletedAt)
	}
	if patch.CancelledAt != nil {
		appendSet("cancelled_at", *patch.CancelledAt)
	}

	query := fmt.Sprintf(
		"UPDATE jobs SET %s WHERE job_id = $%d AND status = $%d RETURNING %s",
		set, argIdx, argIdx+1, jobColumns,
	)
	args = append(args, jobID, expectedStatus)

	var job domain.Job
	err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&job)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a lost race from a missing job.
			if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
				return nil, getErr
			}
			s.logger.Warn("Conditional update lost race",
				slog.String("job_id", jobID),
				slog.String("expected_status", expectedStatus),
			)
			return nil, domain.ErrStaleState
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", job.Status),
	)

	return &job, nil
}
