package domain

import "time"

// Job status constants
const (
	JobStatusOpen                = "OPEN"
	JobStatusAccepted            = "ACCEPTED"
	JobStatusInProgress          = "IN_PROGRESS"
	JobStatusCompletionRequested = "COMPLETION_REQUESTED"
	JobStatusCompleted           = "COMPLETED"
	JobStatusCancelled           = "CANCELLED"
)

// Payment type constants
const (
	PaymentTypeFixed = "FIXED"
	PaymentTypeTip   = "TIP"
	PaymentTypeFree  = "FREE"
)

// Mirrored payment-processor charge statuses. These are persisted verbatim
// from gateway responses, never inferred.
const (
	PaymentStatusAuthorized = "AUTHORIZED"
	PaymentStatusCaptured   = "CAPTURED"
	PaymentStatusSucceeded  = "SUCCEEDED"
	PaymentStatusVoided     = "VOIDED"
)

// Job represents one unit of requested help posted by a creator and
// optionally fulfilled by a helper.
type Job struct {
	JobID           string     `db:"job_id"`
	CreatorID       string     `db:"creator_id"`
	HelperID        *string    `db:"helper_id"`
	Title           string     `db:"title"`
	Description     string     `db:"description"`
	PaymentType     string     `db:"payment_type"`
	AmountCents     Cents      `db:"amount_cents"`
	TipCents        *Cents     `db:"tip_cents"`
	Status          string     `db:"status"`
	PaymentIntentID *string    `db:"payment_intent_id"`
	PaymentStatus   *string    `db:"payment_status"`
	CreatedAt       time.Time  `db:"created_at"`
	AcceptedAt      *time.Time `db:"accepted_at"`
	StartedAt       *time.Time `db:"started_at"`
	HelperDoneAt    *time.Time `db:"helper_done_at"`
	CompletedAt     *time.Time `db:"completed_at"`
	CancelledAt     *time.Time `db:"cancelled_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusCancelled
}

// IsCreator reports whether userID posted the job.
func (j *Job) IsCreator(userID string) bool {
	return j.CreatorID == userID
}

// IsHelper reports whether userID is the assigned helper.
func (j *Job) IsHelper(userID string) bool {
	return j.HelperID != nil && *j.HelperID == userID
}

// Offer is a helper's proposed price/note for an open job. Offers are
// append-only until one of them is accepted.
type Offer struct {
	OfferID     string    `db:"offer_id"`
	JobID       string    `db:"job_id"`
	HelperID    string    `db:"helper_id"`
	AmountCents Cents     `db:"amount_cents"`
	Note        string    `db:"note"`
	Accepted    bool      `db:"accepted"`
	CreatedAt   time.Time `db:"created_at"`
}

// PaymentProfile is the per-user payment configuration mirror.
type PaymentProfile struct {
	UserID             string    `db:"user_id"`
	HasPaymentMethod   bool      `db:"has_payment_method"`
	PayoutAccountID    *string   `db:"payout_account_id"`
	PayoutAccountReady bool      `db:"payout_account_ready"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// JobPatch is a sparse update applied through the ledger's conditional
// write. Nil fields are left untouched.
type JobPatch struct {
	Status          *string
	HelperID        *string
	AmountCents     *Cents
	TipCents        *Cents
	PaymentIntentID *string
	PaymentStatus   *string
	AcceptedAt      *time.Time
	StartedAt       *time.Time
	HelperDoneAt    *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

// legalTransitions maps each status to the statuses reachable from it.
// A job never regresses to an earlier status.
var legalTransitions = map[string][]string{
	JobStatusOpen:                {JobStatusAccepted, JobStatusCancelled},
	JobStatusAccepted:            {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress:          {JobStatusCompletionRequested, JobStatusCompleted, JobStatusCancelled},
	JobStatusCompletionRequested: {JobStatusCompleted, JobStatusCancelled},
	JobStatusCompleted:           {},
	JobStatusCancelled:           {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known job status.
func ValidStatus(s string) bool {
	_, ok := legalTransitions[s]
	return ok
}

// ValidPaymentType reports whether t is a known payment type.
func ValidPaymentType(t string) bool {
	return t == PaymentTypeFixed || t == PaymentTypeTip || t == PaymentTypeFree
}
