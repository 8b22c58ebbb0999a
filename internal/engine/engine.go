// Package engine implements the job payment lifecycle state machine:
// open → accepted → in-progress → {completion-requested →} completed,
// with cancelled reachable from every non-terminal status. Each
// transition validates the actor explicitly, performs any gateway call,
// then commits through the ledger's status-guarded write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/porchjobs/marketplace-be/internal/domain"
	"github.com/porchjobs/marketplace-be/internal/eligibility"
	"github.com/porchjobs/marketplace-be/internal/gateway"
	"github.com/porchjobs/marketplace-be/internal/notify"
)

// Ledger is the slice of the persistence layer the engine consumes. The
// conditional primitives are the only concurrency control: a transition
// that loses the race fails with ErrStaleState (or ErrAlreadyAccepted for
// the accept path) and the caller reloads and retries.
type Ledger interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	AppendOffer(ctx context.Context, offer *domain.Offer) error
	GetOffer(ctx context.Context, jobID, offerID string) (*domain.Offer, error)
	AcceptOffer(ctx context.Context, jobID string, offer *domain.Offer, now time.Time) (*domain.Job, error)
	ConditionalUpdate(ctx context.Context, jobID, expectedStatus string, patch domain.JobPatch) (*domain.Job, error)
}

// ProfileStore resolves users' payment profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.PaymentProfile, error)
}

// Notifier is the best-effort side-channel to the counterpart user.
// Delivery failure never blocks or rolls back a transition.
type Notifier interface {
	Notify(ctx context.Context, recipientID, jobID, kind string) error
}

// Config holds engine tunables.
type Config struct {
	// Currency is the ISO currency code sent to the gateway.
	Currency string
	// GatewayRetryAttempts bounds retries of transient gateway failures.
	GatewayRetryAttempts int
	// GatewayRetryDelay is the base backoff delay between retries.
	GatewayRetryDelay time.Duration
	// AllowUnverifiedPayee restores the permissive behavior of letting a
	// fixed job start when the helper's payout readiness cannot be
	// confirmed, without a per-call override.
	AllowUnverifiedPayee bool
}

// Engine coordinates the ledger, payment gateway, eligibility checks and
// notification side-channel for every job transition.
type Engine struct {
	ledger   Ledger
	profiles ProfileStore
	gateway  gateway.Gateway
	checker  *eligibility.Checker
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
}

// New creates a new Engine instance.
func New(ledger Ledger, profiles ProfileStore, gw gateway.Gateway, checker *eligibility.Checker, notifier Notifier, logger *slog.Logger, cfg Config) *Engine {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.GatewayRetryAttempts <= 0 {
		cfg.GatewayRetryAttempts = 3
	}
	if cfg.GatewayRetryDelay <= 0 {
		cfg.GatewayRetryDelay = 500 * time.Millisecond
	}

	return &Engine{
		ledger:   ledger,
		profiles: profiles,
		gateway:  gw,
		checker:  checker,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateJobInput carries the fields needed to post a new job.
type CreateJobInput struct {
	Title       string
	Description string
	PaymentType string
	AmountCents domain.Cents
}

// CreateJob posts a new open job owned by actor.
func (e *Engine) CreateJob(ctx context.Context, actor string, in CreateJobInput) (*domain.Job, error) {
	if actor == "" {
		return nil, &domain.ValidationError{Field: "actor", Reason: "actor identity is required"}
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "title is required"}
	}
	if !domain.ValidPaymentType(in.PaymentType) {
		return nil, &domain.ValidationError{Field: "payment_type", Reason: fmt.Sprintf("unknown payment type %q", in.PaymentType)}
	}
	if in.PaymentType == domain.PaymentTypeFixed && in.AmountCents <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "fixed jobs require a positive amount"}
	}
	if in.PaymentType != domain.PaymentTypeFixed && in.AmountCents != 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "amount is only meaningful for fixed jobs"}
	}

	now := time.Now().UTC()
	job := &domain.Job{
		JobID:       uuid.New().String(),
		CreatorID:   actor,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		PaymentType: in.PaymentType,
		AmountCents: in.AmountCents,
		Status:      domain.JobStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.ledger.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	e.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("creator_id", actor),
		slog.String("payment_type", job.PaymentType),
	)

	return job, nil
}

// SubmitOffer appends a helper's offer to an open job and notifies the
// creator.
func (e *Engine) SubmitOffer(ctx context.Context, actor, jobID string, amountCents domain.Cents, note string) (*domain.Offer, error) {
	if amountCents < 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "offer amount must not be negative"}
	}

	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusOpen {
		return nil, domain.NewInvalidTransition("submit offer", job, "job is no longer open")
	}
	if job.IsCreator(actor) {
		return nil, domain.NewInvalidTransition("submit offer", job, "creator cannot offer on their own job")
	}

	offer := &domain.Offer{
		OfferID:     uuid.New().String(),
		JobID:       jobID,
		HelperID:    actor,
		AmountCents: amountCents,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.ledger.AppendOffer(ctx, offer); err != nil {
		return nil, err
	}

	e.notify(ctx, job.CreatorID, jobID, notify.KindOfferReceived)

	return offer, nil
}

// AcceptOffer assigns the offer's helper to the job. Exactly one offer
// per job can be accepted: the ledger's status-guarded write lets a
// single accept win and fails the rest with ErrAlreadyAccepted.
func (e *Engine) AcceptOffer(ctx context.Context, actor, jobID, offerID string) (*domain.Job, error) {
	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsCreator(actor) {
		return nil, domain.NewInvalidTransition("accept offer", job, "only the creator can accept an offer")
	}
	if job.Status != domain.JobStatusOpen {
		return nil, domain.NewInvalidTransition("accept offer", job, "job is no longer open")
	}

	offer, err := e.ledger.GetOffer(ctx, jobID, offerID)
	if err != nil {
		return nil, err
	}

	updated, err := e.ledger.AcceptOffer(ctx, jobID, offer, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	e.notify(ctx, offer.HelperID, jobID, notify.KindJobOffer)

	return updated, nil
}

// StartJob moves an accepted job to in-progress. For fixed jobs it first
// verifies payer and payee eligibility and authorizes the charge; the
// funds stay held until the creator confirms completion. Callable by the
// creator or the assigned helper.
//
// The payee-readiness check is soft: when the payout account is not
// confirmed ready, the transition fails with ErrPayeeSetupIncomplete
// unless the actor explicitly confirms (the gateway can lag in reporting
// readiness) or the engine is configured permissive.
func (e *Engine) StartJob(ctx context.Context, actor, jobID string, confirmUnverifiedPayee bool) (*domain.Job, error) {
	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusAccepted {
		return nil, domain.NewInvalidTransition("start job", job, "job must be accepted first")
	}
	if !job.IsCreator(actor) && !job.IsHelper(actor) {
		return nil, domain.NewInvalidTransition("start job", job, "only the creator or assigned helper can start the job")
	}

	now := time.Now().UTC()
	status := domain.JobStatusInProgress
	patch := domain.JobPatch{
		Status:    &status,
		StartedAt: &now,
	}

	if job.PaymentType == domain.PaymentTypeFixed {
		charge, err := e.authorizeFixedCharge(ctx, job, confirmUnverifiedPayee)
		if err != nil {
			return nil, err
		}

		mirrored := mirrorChargeStatus(charge.Status)
		patch.PaymentIntentID = &charge.ChargeID
		patch.PaymentStatus = &mirrored
	}

	updated, err := e.ledger.ConditionalUpdate(ctx, jobID, domain.JobStatusAccepted, patch)
	if err != nil {
		if patch.PaymentIntentID != nil {
			// Funds are held but the job never reached in-progress.
			// Reconciliation has to void or re-attach this charge.
			e.logger.Error("Reconciliation required: charge authorized but job not started",
				slog.String("job_id", jobID),
				slog.String("charge_id", *patch.PaymentIntentID),
				slog.Any("error", err),
			)
		}
		return nil, err
	}

	e.logger.Info("Job started",
		slog.String("job_id", jobID),
		slog.String("payment_type", job.PaymentType),
		slog.String("actor", actor),
	)

	return updated, nil
}

// authorizeFixedCharge runs the eligibility checks and holds the job
// amount on the creator's instrument.
func (e *Engine) authorizeFixedCharge(ctx context.Context, job *domain.Job, confirmUnverifiedPayee bool) (*gateway.Charge, error) {
	canPay, err := e.checker.CanPay(ctx, job.CreatorID)
	if err != nil {
		return nil, err
	}
	if !canPay {
		return nil, domain.ErrPaymentSetupRequired
	}

	helperProfile, err := e.profiles.GetProfile(ctx, *job.HelperID)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, err
	}

	payeeAccount := ""
	if helperProfile != nil && helperProfile.PayoutAccountID != nil {
		payeeAccount = *helperProfile.PayoutAccountID
	}

	recv, err := e.checker.CanReceive(ctx, payeeAccount)
	if err != nil {
		return nil, err
	}
	if !recv.Ready {
		if !confirmUnverifiedPayee && !e.cfg.AllowUnverifiedPayee {
			e.logger.Warn("Blocking start: payee not ready",
				slog.String("job_id", job.JobID),
				slog.String("helper_id", *job.HelperID),
				slog.String("reason", recv.Reason),
			)
			return nil, fmt.Errorf("%w (%s)", domain.ErrPayeeSetupIncomplete, recv.Reason)
		}
		e.logger.Warn("Starting job with unverified payee",
			slog.String("job_id", job.JobID),
			slog.String("helper_id", *job.HelperID),
			slog.String("reason", recv.Reason),
		)
	}

	req := gateway.ChargeRequest{
		AmountCents:    int64(job.AmountCents),
		Currency:       e.cfg.Currency,
		PayerAccount:   job.CreatorID,
		PayeeAccount:   payeeAccount,
		IdempotencyKey: "authorize-" + job.JobID,
		Metadata: map[string]string{
			"job_id":    job.JobID,
			"helper_id": *job.HelperID,
		},
	}

	return e.callGateway(ctx, "authorize", job.JobID, func() (*gateway.Charge, error) {
		return e.gateway.AuthorizeCharge(ctx, req)
	})
}

// RequestCompletion lets the assigned helper signal the work is done.
// Pure state transition: funds release requires the creator's explicit
// confirmation.
func (e *Engine) RequestCompletion(ctx context.Context, actor, jobID string) (*domain.Job, error) {
	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusInProgress {
		return nil, domain.NewInvalidTransition("request completion", job, "job is not in progress")
	}
	if !job.IsHelper(actor) {
		return nil, domain.NewInvalidTransition("request completion", job, "only the assigned helper can request completion")
	}

	now := time.Now().UTC()
	status := domain.JobStatusCompletionRequested
	updated, err := e.ledger.ConditionalUpdate(ctx, jobID, domain.JobStatusInProgress, domain.JobPatch{
		Status:       &status,
		HelperDoneAt: &now,
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, job.CreatorID, jobID, notify.KindCompletionRequested)

	return updated, nil
}

// ConfirmCompletion lets the creator finish the job and release funds.
// Valid from in-progress as well as completion-requested: the creator can
// always finish directly without waiting for the helper's signal. For
// fixed jobs the held charge is captured; for tip jobs the caller must
// first add or explicitly skip the tip; free jobs just complete.
func (e *Engine) ConfirmCompletion(ctx context.Context, actor, jobID string) (*domain.Job, error) {
	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := requireConfirmable(job, actor, "confirm completion"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := domain.JobStatusCompleted
	patch := domain.JobPatch{
		Status:      &status,
		CompletedAt: &now,
	}

	switch job.PaymentType {
	case domain.PaymentTypeFixed:
		if job.PaymentIntentID == nil {
			return nil, domain.NewInvalidTransition("confirm completion", job, "no authorized charge on record")
		}

		charge, err := e.captureCharge(ctx, job)
		if err != nil {
			return nil, err
		}

		mirrored := mirrorChargeStatus(charge.Status)
		patch.PaymentStatus = &mirrored

	case domain.PaymentTypeTip:
		return nil, domain.ErrTipDecisionRequired

	case domain.PaymentTypeFree:
		// No gateway call.
	}

	updated, err := e.ledger.ConditionalUpdate(ctx, jobID, job.Status, patch)
	if err != nil {
		if job.PaymentType == domain.PaymentTypeFixed {
			// Funds already moved to the payee; the job record is behind.
			e.logger.Error("Reconciliation required: charge captured but job not completed",
				slog.String("job_id", jobID),
				slog.String("charge_id", *job.PaymentIntentID),
				slog.Any("error", err),
			)
		}
		return nil, err
	}

	e.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("payment_type", job.PaymentType),
	)

	e.notify(ctx, *job.HelperID, jobID, notify.KindCompletionConfirmed)

	return updated, nil
}

// captureCharge releases the held funds, confirming the charge first if
// the processor left it in a pre-confirmation state.
func (e *Engine) captureCharge(ctx context.Context, job *domain.Job) (*gateway.Charge, error) {
	chargeID := *job.PaymentIntentID

	charge, err := e.callGateway(ctx, "capture", job.JobID, func() (*gateway.Charge, error) {
		return e.gateway.CaptureCharge(ctx, chargeID)
	})
	if err == nil {
		return charge, nil
	}

	// Some charges require an explicit confirm before capture is
	// possible. Confirm once, then retry the capture.
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && !gwErr.Transient {
		e.logger.Warn("Capture rejected, attempting confirm first",
			slog.String("job_id", job.JobID),
			slog.String("charge_id", chargeID),
			slog.String("code", gwErr.Code),
		)

		if _, confirmErr := e.gateway.ConfirmCharge(ctx, chargeID); confirmErr == nil {
			return e.callGateway(ctx, "capture", job.JobID, func() (*gateway.Charge, error) {
				return e.gateway.CaptureCharge(ctx, chargeID)
			})
		}
	}

	return nil, err
}

// AddTip charges the tip in one authorize-and-capture step and completes
// the job. Only valid for tip jobs from in-progress or
// completion-requested.
func (e *Engine) AddTip(ctx context.Context, actor, jobID string, amountCents domain.Cents) (*domain.Job, error) {
	if amountCents <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "tip must be greater than zero"}
	}

	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PaymentType != domain.PaymentTypeTip {
		return nil, domain.NewInvalidTransition("add tip", job, "tips apply only to tip jobs")
	}
	if err := requireConfirmable(job, actor, "add tip"); err != nil {
		return nil, err
	}

	canPay, err := e.checker.CanPay(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !canPay {
		return nil, domain.ErrPaymentSetupRequired
	}

	helperProfile, err := e.profiles.GetProfile(ctx, *job.HelperID)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, err
	}

	payeeAccount := ""
	if helperProfile != nil && helperProfile.PayoutAccountID != nil {
		payeeAccount = *helperProfile.PayoutAccountID
	}

	req := gateway.ChargeRequest{
		AmountCents:    int64(amountCents),
		Currency:       e.cfg.Currency,
		PayerAccount:   job.CreatorID,
		PayeeAccount:   payeeAccount,
		IdempotencyKey: "tip-" + job.JobID,
		Metadata: map[string]string{
			"job_id":    job.JobID,
			"helper_id": *job.HelperID,
			"kind":      "tip",
		},
	}

	charge, err := e.callGateway(ctx, "tip", job.JobID, func() (*gateway.Charge, error) {
		return e.gateway.ChargeImmediate(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := domain.JobStatusCompleted
	mirrored := mirrorChargeStatus(charge.Status)
	updated, err := e.ledger.ConditionalUpdate(ctx, jobID, job.Status, domain.JobPatch{
		Status:        &status,
		TipCents:      &amountCents,
		PaymentStatus: &mirrored,
		CompletedAt:   &now,
	})
	if err != nil {
		e.logger.Error("Reconciliation required: tip charged but job not completed",
			slog.String("job_id", jobID),
			slog.String("charge_id", charge.ChargeID),
			slog.Any("error", err),
		)
		return nil, err
	}

	e.logger.Info("Tip added",
		slog.String("job_id", jobID),
		slog.String("charge_id", charge.ChargeID),
		slog.Int64("tip_cents", int64(amountCents)),
	)

	e.notify(ctx, *job.HelperID, jobID, notify.KindCompletionConfirmed)

	return updated, nil
}

// SkipTip completes a tip job without charging anything; the job finishes
// with no tip on record.
func (e *Engine) SkipTip(ctx context.Context, actor, jobID string) (*domain.Job, error) {
	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PaymentType != domain.PaymentTypeTip {
		return nil, domain.NewInvalidTransition("skip tip", job, "tips apply only to tip jobs")
	}
	if err := requireConfirmable(job, actor, "skip tip"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := domain.JobStatusCompleted
	updated, err := e.ledger.ConditionalUpdate(ctx, jobID, job.Status, domain.JobPatch{
		Status:      &status,
		CompletedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, *job.HelperID, jobID, notify.KindCompletionConfirmed)

	return updated, nil
}

// CancelJob terminates the job from any non-terminal status. If an
// authorized, uncaptured charge exists, the engine voids it best-effort
// after the cancellation commits: a void failure is a reconciliation
// case, never a reason to keep a dead job alive.
func (e *Engine) CancelJob(ctx context.Context, actor, jobID string) (*domain.Job, error) {
	job, err := e.ledger.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsCreator(actor) {
		return nil, domain.NewInvalidTransition("cancel job", job, "only the creator can cancel the job")
	}
	if job.Terminal() {
		return nil, domain.NewInvalidTransition("cancel job", job, "job already finished")
	}

	now := time.Now().UTC()
	status := domain.JobStatusCancelled
	updated, err := e.ledger.ConditionalUpdate(ctx, jobID, job.Status, domain.JobPatch{
		Status:      &status,
		CancelledAt: &now,
	})
	if err != nil {
		return nil, err
	}

	if job.PaymentIntentID != nil && job.PaymentStatus != nil && *job.PaymentStatus == domain.PaymentStatusAuthorized {
		if voided, voidErr := e.gateway.VoidCharge(ctx, *job.PaymentIntentID); voidErr != nil {
			e.logger.Error("Reconciliation required: cancelled job has an un-voided authorization",
				slog.String("job_id", jobID),
				slog.String("charge_id", *job.PaymentIntentID),
				slog.Any("error", voidErr),
			)
		} else {
			mirrored := mirrorChargeStatus(voided.Status)
			if refreshed, updErr := e.ledger.ConditionalUpdate(ctx, jobID, domain.JobStatusCancelled, domain.JobPatch{
				PaymentStatus: &mirrored,
			}); updErr == nil {
				updated = refreshed
			}
		}
	}

	e.logger.Info("Job cancelled",
		slog.String("job_id", jobID),
		slog.String("previous_status", job.Status),
	)

	if job.HelperID != nil {
		e.notify(ctx, *job.HelperID, jobID, notify.KindJobCancelled)
	}

	return updated, nil
}

// requireConfirmable validates the shared preconditions of the
// creator-driven completion paths.
func requireConfirmable(job *domain.Job, actor, op string) error {
	if job.Status != domain.JobStatusInProgress && job.Status != domain.JobStatusCompletionRequested {
		return domain.NewInvalidTransition(op, job, "job is not in progress")
	}
	if !job.IsCreator(actor) {
		return domain.NewInvalidTransition(op, job, "only the creator can release payment")
	}
	return nil
}

// callGateway invokes a gateway operation, retrying transient failures a
// bounded number of times with exponential backoff. Permanent failures
// surface immediately.
func (e *Engine) callGateway(ctx context.Context, op, jobID string, call func() (*gateway.Charge, error)) (*gateway.Charge, error) {
	var lastErr error

	for attempt := 0; attempt < e.cfg.GatewayRetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := e.cfg.GatewayRetryDelay * time.Duration(1<<uint(attempt-1))
			e.logger.Warn("Retrying gateway call",
				slog.String("op", op),
				slog.String("job_id", jobID),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, gateway.NewTransientError("cancelled", ctx.Err().Error())
			}
		}

		charge, err := call()
		if err == nil {
			return charge, nil
		}
		lastErr = err

		var gwErr *gateway.Error
		if !errors.As(err, &gwErr) || !gwErr.Transient {
			return nil, err
		}
	}

	e.logger.Error("Gateway call failed after retries",
		slog.String("op", op),
		slog.String("job_id", jobID),
		slog.Int("attempts", e.cfg.GatewayRetryAttempts),
		slog.Any("error", lastErr),
	)

	return nil, lastErr
}

// notify fires the side-channel without letting failures surface.
func (e *Engine) notify(ctx context.Context, recipientID, jobID, kind string) {
	if err := e.notifier.Notify(ctx, recipientID, jobID, kind); err != nil {
		e.logger.Warn("Notification delivery failed",
			slog.String("recipient_id", recipientID),
			slog.String("job_id", jobID),
			slog.String("kind", kind),
			slog.Any("error", err),
		)
	}
}

// mirrorChargeStatus maps processor charge statuses onto the persisted
// payment-status mirror.
func mirrorChargeStatus(status string) string {
	switch status {
	case "requires_capture", "authorized":
		return domain.PaymentStatusAuthorized
	case "succeeded", "captured":
		return domain.PaymentStatusCaptured
	case "canceled", "cancelled":
		return domain.PaymentStatusVoided
	default:
		return strings.ToUpper(status)
	}
}
