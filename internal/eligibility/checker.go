// Package eligibility answers "can this user pay" and "can this account
// receive" before the engine lets money move.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/porchjobs/marketplace-be/internal/domain"
	"github.com/porchjobs/marketplace-be/internal/gateway"
)

// Reason codes explaining why a payee cannot receive funds yet.
const (
	ReasonNoAccount            = "NO_ACCOUNT"
	ReasonOnboardingIncomplete = "ONBOARDING_INCOMPLETE"
	ReasonPayoutsDisabled      = "PAYOUTS_DISABLED"
)

// ProfileStore is the slice of the profile layer the checker consumes.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.PaymentProfile, error)
}

// AccountGateway is the slice of the payment gateway the checker consumes.
type AccountGateway interface {
	GetPayeeAccountStatus(ctx context.Context, accountID string) (*gateway.AccountStatus, error)
}

// Receivability is the result of a payee-side check. Reason is set only
// when Ready is false, and distinguishes "no account" from "account
// incomplete" for user messaging.
type Receivability struct {
	Ready  bool
	Reason string
}

// Checker verifies payer and payee payment readiness.
type Checker struct {
	profiles ProfileStore
	gateway  AccountGateway
	logger   *slog.Logger
}

// NewChecker creates a new Checker instance.
func NewChecker(profiles ProfileStore, gw AccountGateway, logger *slog.Logger) *Checker {
	return &Checker{
		profiles: profiles,
		gateway:  gw,
		logger:   logger,
	}
}

// CanPay reports whether the user has a usable payment method on file.
// A missing profile counts as "cannot pay", not an error.
func (c *Checker) CanPay(ctx context.Context, userID string) (bool, error) {
	p, err := c.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check payer eligibility: %w", err)
	}
	return p.HasPaymentMethod, nil
}

// CanReceive queries the processor for the payout account's readiness.
// Ready iff onboarding is complete and payouts are enabled.
func (c *Checker) CanReceive(ctx context.Context, payoutAccountID string) (*Receivability, error) {
	if payoutAccountID == "" {
		return &Receivability{Ready: false, Reason: ReasonNoAccount}, nil
	}

	status, err := c.gateway.GetPayeeAccountStatus(ctx, payoutAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payee account: %w", err)
	}

	switch {
	case !status.Exists:
		return &Receivability{Ready: false, Reason: ReasonNoAccount}, nil
	case !status.OnboardingComplete:
		return &Receivability{Ready: false, Reason: ReasonOnboardingIncomplete}, nil
	case !status.ReadyToReceive:
		return &Receivability{Ready: false, Reason: ReasonPayoutsDisabled}, nil
	}

	return &Receivability{Ready: true}, nil
}
