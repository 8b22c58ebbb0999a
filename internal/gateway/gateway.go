// Package gateway wraps the external payment processor behind a small
// adapter interface. The adapter is stateless; every mutating call takes
// an idempotency key so retries cannot double-charge.
package gateway

import (
	"context"
	"fmt"
)

// Charge is the normalized result of a charge operation.
type Charge struct {
	ChargeID string
	Status   string
}

// AccountStatus describes a payee's onboarding state at the processor.
type AccountStatus struct {
	Exists             bool
	ReadyToReceive     bool
	OnboardingComplete bool
}

// Account is a newly created payee account plus its onboarding link.
type Account struct {
	AccountID     string
	OnboardingURL string
}

// ChargeRequest carries the common inputs of charge-creating calls.
// Amount is in integer minor-currency units.
type ChargeRequest struct {
	AmountCents    int64
	Currency       string
	PayerAccount   string
	PayeeAccount   string
	IdempotencyKey string
	Metadata       map[string]string
}

// Gateway is the payment-processor adapter consumed by the lifecycle
// engine. Implementations normalize processor responses and map failures
// into *Error with a transient/permanent classification.
type Gateway interface {
	// AuthorizeCharge holds funds on the payer's instrument for later
	// manual capture, designating the full amount for the payee.
	AuthorizeCharge(ctx context.Context, req ChargeRequest) (*Charge, error)

	// ConfirmCharge advances a charge stuck in a pre-confirmation state.
	ConfirmCharge(ctx context.Context, chargeID string) (*Charge, error)

	// CaptureCharge releases previously authorized funds to the payee.
	// Capturing an already-captured charge returns its existing status.
	CaptureCharge(ctx context.Context, chargeID string) (*Charge, error)

	// VoidCharge cancels an authorized, uncaptured charge, releasing the
	// hold on the payer's instrument.
	VoidCharge(ctx context.Context, chargeID string) (*Charge, error)

	// ChargeImmediate authorizes and captures in one step. Used for tips,
	// which are not held and released in two phases.
	ChargeImmediate(ctx context.Context, req ChargeRequest) (*Charge, error)

	// GetPayeeAccountStatus queries a payee account's readiness.
	GetPayeeAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)

	// CreatePayeeAccount provisions a payee account for ownerIdentity and
	// returns the onboarding URL the helper must complete.
	CreatePayeeAccount(ctx context.Context, ownerIdentity string) (*Account, error)
}

// Error is a normalized gateway failure. Transient errors (network, rate
// limit, processor 5xx) may be retried by the caller; permanent errors
// (card declined, invalid account) must surface without touching the
// ledger.
type Error struct {
	Transient bool
	Code      string
	Message   string
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway %s error [%s]: %s", kind, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s error: %s", kind, e.Message)
}

// NewTransientError wraps a retryable failure.
func NewTransientError(code, message string) *Error {
	return &Error{Transient: true, Code: code, Message: message}
}

// NewPermanentError wraps a hard failure that must not be retried.
func NewPermanentError(code, message string) *Error {
	return &Error{Transient: false, Code: code, Message: message}
}
