package handler

import (
	"log/slog"

	"github.com/porchjobs/marketplace-be/internal/eligibility"
	"github.com/porchjobs/marketplace-be/internal/engine"
	"github.com/porchjobs/marketplace-be/internal/gateway"
	"github.com/porchjobs/marketplace-be/internal/ledger"
	"github.com/porchjobs/marketplace-be/internal/profile"
	"github.com/porchjobs/marketplace-be/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Engine   *engine.Engine
	Ledger   *ledger.Store
	Profiles *profile.Store
	Checker  *eligibility.Checker
	Gateway  gateway.Gateway
	DB       *postgresql.Client
}

// JobHandler handles job lifecycle HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	engine  *engine.Engine
	ledger  *ledger.Store
	checker *eligibility.Checker
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		engine:  deps.Engine,
		ledger:  deps.Ledger,
		checker: deps.Checker,
	}
}

// UserHandler handles user payment-profile and eligibility HTTP requests
type UserHandler struct {
	logger   *slog.Logger
	profiles *profile.Store
	checker  *eligibility.Checker
	gateway  gateway.Gateway
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(deps *Dependencies) *UserHandler {
	return &UserHandler{
		logger:   deps.Logger,
		profiles: deps.Profiles,
		checker:  deps.Checker,
		gateway:  deps.Gateway,
	}
}
