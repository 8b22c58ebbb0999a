package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/porchjobs/marketplace-be/internal/api/dto"
	"github.com/porchjobs/marketplace-be/internal/domain"
)

// userParam validates the :user_id path parameter and checks that the
// authenticated actor is operating on their own profile.
func (h *UserHandler) userParam(c *gin.Context) (string, bool) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "user_id is required"})
		return "", false
	}

	actor, ok := actorID(c)
	if !ok {
		return "", false
	}
	if actor != userID {
		c.JSON(http.StatusForbidden, gin.H{
			"code":  "forbidden",
			"error": "payment profiles can only be modified by their owner",
		})
		return "", false
	}
	return userID, true
}

// UpdatePaymentProfile handles PUT /api/v1/users/:user_id/payment-profile
// Toggles the payment-method flag while preserving any payout-account
// state already on the profile.
func (h *UserHandler) UpdatePaymentProfile(c *gin.Context) {
	userID, ok := h.userParam(c)
	if !ok {
		return
	}

	var req dto.UpdatePaymentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "invalid request body"})
		return
	}

	p, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			respondError(c, h.logger, err)
			return
		}
		p = &domain.PaymentProfile{UserID: userID}
	}
	p.HasPaymentMethod = req.HasPaymentMethod

	if err := h.profiles.UpsertProfile(c.Request.Context(), p); err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := dto.PaymentProfileResponse{
		UserID:             p.UserID,
		HasPaymentMethod:   p.HasPaymentMethod,
		PayoutAccountReady: p.PayoutAccountReady,
	}
	if p.PayoutAccountID != nil {
		resp.PayoutAccountID = *p.PayoutAccountID
	}
	c.JSON(http.StatusOK, resp)
}

// CreatePayoutAccount handles POST /api/v1/users/:user_id/payout-account
// Provisions a payout account at the processor and records it on the
// profile. Readiness stays false until onboarding completes; the
// eligibility check re-queries the processor for the live state.
func (h *UserHandler) CreatePayoutAccount(c *gin.Context) {
	userID, ok := h.userParam(c)
	if !ok {
		return
	}

	p, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			respondError(c, h.logger, err)
			return
		}
		p = &domain.PaymentProfile{UserID: userID}
	}
	if p.PayoutAccountID != nil && *p.PayoutAccountID != "" {
		c.JSON(http.StatusConflict, gin.H{
			"code":  "account_exists",
			"error": "a payout account is already on file for this user",
		})
		return
	}

	account, err := h.gateway.CreatePayeeAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	p.PayoutAccountID = &account.AccountID
	p.PayoutAccountReady = false
	if err := h.profiles.UpsertProfile(c.Request.Context(), p); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Payout account provisioned",
		slog.String("user_id", userID),
		slog.String("account_id", account.AccountID),
	)

	c.JSON(http.StatusCreated, dto.CreatePayoutAccountResponse{
		UserID:        userID,
		AccountID:     account.AccountID,
		OnboardingURL: account.OnboardingURL,
	})
}

// Eligibility handles GET /api/v1/users/:user_id/eligibility
// Pre-flight check so clients can direct users to payment setup before a
// transition fails on it.
func (h *UserHandler) Eligibility(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "user_id is required"})
		return
	}

	canPay, err := h.checker.CanPay(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	payoutAccount := ""
	p, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, domain.ErrProfileNotFound) {
		respondError(c, h.logger, err)
		return
	}
	if p != nil && p.PayoutAccountID != nil {
		payoutAccount = *p.PayoutAccountID
	}

	recv, err := h.checker.CanReceive(c.Request.Context(), payoutAccount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.EligibilityResponse{
		UserID:     userID,
		CanPay:     canPay,
		CanReceive: recv.Ready,
		Reason:     recv.Reason,
	})
}
