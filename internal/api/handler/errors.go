package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/porchjobs/marketplace-be/internal/domain"
	"github.com/porchjobs/marketplace-be/internal/gateway"
)

// respondError maps engine/ledger errors onto HTTP responses. Every
// failure keeps its distinguishing reason: the client must be able to
// tell "set up a payment method" apart from "try again".
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr *domain.ValidationError
	var transitionErr *domain.InvalidTransitionError
	var gwErr *gateway.Error

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "validation_failed",
			"error": validationErr.Error(),
		})

	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrOfferNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "not_found",
			"error": err.Error(),
		})

	case errors.Is(err, domain.ErrPaymentSetupRequired):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "payment_setup_required",
			"error": "Add a payment method before starting paid jobs.",
		})

	case errors.Is(err, domain.ErrPayeeSetupIncomplete):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "payee_setup_incomplete",
			"error": "Your helper has not completed payout setup. You can confirm to start anyway.",
		})

	case errors.Is(err, domain.ErrTipDecisionRequired):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "tip_decision_required",
			"error": "Add a tip or skip it to complete this job.",
		})

	case errors.Is(err, domain.ErrAlreadyAccepted):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "already_accepted",
			"error": "Another offer was already accepted for this job.",
		})

	case errors.Is(err, domain.ErrStaleState):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "stale_state",
			"error": "The job changed while you were acting. Refresh and try again.",
		})

	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "invalid_transition",
			"error": transitionErr.Error(),
		})

	case errors.As(err, &gwErr):
		if gwErr.Transient {
			c.JSON(http.StatusBadGateway, gin.H{
				"code":  "payment_unavailable",
				"error": "The payment service is temporarily unavailable. Try again.",
			})
		} else {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"code":  "payment_failed",
				"error": gwErr.Message,
			})
		}

	default:
		logger.Error("Unhandled request error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "internal",
			"error": "Something went wrong.",
		})
	}
}
