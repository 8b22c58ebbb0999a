package dto

// CreateJobRequest posts a new open job. Amount is a decimal dollar
// string and only meaningful for fixed jobs.
type CreateJobRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	PaymentType string `json:"payment_type" binding:"required"`
	Amount      string `json:"amount"`
}

// SubmitOfferRequest proposes a price for an open job.
type SubmitOfferRequest struct {
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

// StartJobRequest optionally confirms starting with an unverified payee.
type StartJobRequest struct {
	ConfirmUnverifiedPayee bool `json:"confirm_unverified_payee"`
}

// TipRequest either adds a tip amount or explicitly skips it.
type TipRequest struct {
	Amount string `json:"amount"`
	Skip   bool   `json:"skip"`
}

// ListJobsRequest filters the job listing.
type ListJobsRequest struct {
	CreatorID   string `form:"creator_id"`
	HelperID    string `form:"helper_id"`
	Status      string `form:"status"`
	PaymentType string `form:"payment_type"`
	PageSize    int    `form:"page_size"`
	Cursor      string `form:"cursor"`
}

// ListJobsResponse is a page of jobs plus the cursor for the next page.
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the job representation returned to clients. Amounts carry
// both minor units and a formatted dollar string.
type JobDTO struct {
	JobID           string  `json:"job_id"`
	CreatorID       string  `json:"creator_id"`
	HelperID        *string `json:"helper_id,omitempty"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	PaymentType     string  `json:"payment_type"`
	AmountCents     int64   `json:"amount_cents"`
	Amount          string  `json:"amount"`
	TipCents        *int64  `json:"tip_cents,omitempty"`
	Tip             string  `json:"tip,omitempty"`
	Status          string  `json:"status"`
	PaymentIntentID *string `json:"payment_intent_id,omitempty"`
	PaymentStatus   *string `json:"payment_status,omitempty"`
	CreatedAt       string  `json:"created_at"`
	AcceptedAt      string  `json:"accepted_at,omitempty"`
	StartedAt       string  `json:"started_at,omitempty"`
	HelperDoneAt    string  `json:"helper_done_at,omitempty"`
	CompletedAt     string  `json:"completed_at,omitempty"`
	CancelledAt     string  `json:"cancelled_at,omitempty"`
}

// OfferDTO is the offer representation returned to clients.
type OfferDTO struct {
	OfferID     string `json:"offer_id"`
	JobID       string `json:"job_id"`
	HelperID    string `json:"helper_id"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Note        string `json:"note,omitempty"`
	Accepted    bool   `json:"accepted"`
	CreatedAt   string `json:"created_at"`
}

// ListOffersResponse is a job's offers in submission order.
type ListOffersResponse struct {
	Offers []OfferDTO `json:"offers"`
}

// UpdatePaymentProfileRequest toggles whether the user has a payment
// method on file. Payout-account fields are managed through the
// onboarding endpoint, not here.
type UpdatePaymentProfileRequest struct {
	HasPaymentMethod bool `json:"has_payment_method"`
}

// PaymentProfileResponse is the stored payment profile returned after an
// update.
type PaymentProfileResponse struct {
	UserID             string `json:"user_id"`
	HasPaymentMethod   bool   `json:"has_payment_method"`
	PayoutAccountID    string `json:"payout_account_id,omitempty"`
	PayoutAccountReady bool   `json:"payout_account_ready"`
}

// CreatePayoutAccountResponse returns the provisioned payout account and
// the onboarding URL the user must complete before receiving funds.
type CreatePayoutAccountResponse struct {
	UserID        string `json:"user_id"`
	AccountID     string `json:"account_id"`
	OnboardingURL string `json:"onboarding_url"`
}

// EligibilityResponse is the pre-flight payment readiness of one user.
type EligibilityResponse struct {
	UserID     string `json:"user_id"`
	CanPay     bool   `json:"can_pay"`
	CanReceive bool   `json:"can_receive"`
	// Reason is set when CanReceive is false and distinguishes a missing
	// payout account from incomplete onboarding
	Reason string `json:"reason,omitempty"`
}
