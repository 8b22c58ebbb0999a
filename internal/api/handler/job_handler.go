package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/porchjobs/marketplace-be/internal/api/dto"
	"github.com/porchjobs/marketplace-be/internal/domain"
	"github.com/porchjobs/marketplace-be/internal/engine"
	"github.com/porchjobs/marketplace-be/internal/ledger"
)

// actorID returns the authenticated actor set by the router middleware.
// Engine operations always receive the actor explicitly; there is no
// ambient identity below this point.
func actorID(c *gin.Context) (string, bool) {
	actor := c.GetString("actor_id")
	if actor == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":  "missing_actor",
			"error": "X-User-ID header is required",
		})
		return "", false
	}
	return actor, true
}

// jobID validates the :job_id path parameter.
func jobID(c *gin.Context) (string, bool) {
	id := c.Param("job_id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "validation_failed",
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return id, true
}

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "Invalid request body"})
		return
	}

	var amount domain.Cents
	if req.Amount != "" {
		parsed, err := domain.ParseDollars(req.Amount)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		amount = parsed
	}

	job, err := h.engine.CreateJob(c.Request.Context(), actor, engine.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		PaymentType: req.PaymentType,
		AmountCents: amount,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.ledger.GetJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "Invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "Invalid cursor"})
		return
	}

	filter := ledger.JobFilter{
		CreatorID:   req.CreatorID,
		HelperID:    req.HelperID,
		Status:      req.Status,
		PaymentType: req.PaymentType,
		PageSize:    req.PageSize,
		Cursor:      cursor,
	}

	jobs, err := h.ledger.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = toJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&ledger.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitOffer handles POST /api/v1/jobs/:job_id/offers
func (h *JobHandler) SubmitOffer(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req dto.SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "Invalid request body"})
		return
	}

	var amount domain.Cents
	if req.Amount != "" {
		parsed, err := domain.ParseDollars(req.Amount)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		amount = parsed
	}

	offer, err := h.engine.SubmitOffer(c.Request.Context(), actor, id, amount, req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toOfferDTO(offer))
}

// ListOffers handles GET /api/v1/jobs/:job_id/offers
func (h *JobHandler) ListOffers(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	offers, err := h.ledger.ListOffers(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := dto.ListOffersResponse{Offers: make([]dto.OfferDTO, len(offers))}
	for i := range offers {
		resp.Offers[i] = toOfferDTO(&offers[i])
	}

	c.JSON(http.StatusOK, resp)
}

// AcceptOffer handles POST /api/v1/jobs/:job_id/offers/:offer_id/accept
func (h *JobHandler) AcceptOffer(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	offerID := c.Param("offer_id")
	if _, err := uuid.Parse(offerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "offer_id must be a valid UUID"})
		return
	}

	job, err := h.engine.AcceptOffer(c.Request.Context(), actor, id, offerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// StartJob handles POST /api/v1/jobs/:job_id/start
func (h *JobHandler) StartJob(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	// The body is optional; an empty body means no override.
	var req dto.StartJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "Invalid request body"})
			return
		}
	}

	job, err := h.engine.StartJob(c.Request.Context(), actor, id, req.ConfirmUnverifiedPayee)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// RequestCompletion handles POST /api/v1/jobs/:job_id/request-completion
func (h *JobHandler) RequestCompletion(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.engine.RequestCompletion(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ConfirmCompletion handles POST /api/v1/jobs/:job_id/confirm-completion
func (h *JobHandler) ConfirmCompletion(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.engine.ConfirmCompletion(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// Tip handles POST /api/v1/jobs/:job_id/tip
func (h *JobHandler) Tip(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	var req dto.TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_failed", "error": "Invalid request body"})
		return
	}

	var job *domain.Job
	var err error
	if req.Skip {
		job, err = h.engine.SkipTip(c.Request.Context(), actor, id)
	} else {
		var amount domain.Cents
		amount, err = domain.ParseDollars(req.Amount)
		if err == nil {
			job, err = h.engine.AddTip(c.Request.Context(), actor, id, amount)
		}
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	job, err := h.engine.CancelJob(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:           job.JobID,
		CreatorID:       job.CreatorID,
		HelperID:        job.HelperID,
		Title:           job.Title,
		Description:     job.Description,
		PaymentType:     job.PaymentType,
		AmountCents:     int64(job.AmountCents),
		Amount:          job.AmountCents.Dollars(),
		Status:          job.Status,
		PaymentIntentID: job.PaymentIntentID,
		PaymentStatus:   job.PaymentStatus,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		AcceptedAt:      formatTime(job.AcceptedAt),
		StartedAt:       formatTime(job.StartedAt),
		HelperDoneAt:    formatTime(job.HelperDoneAt),
		CompletedAt:     formatTime(job.CompletedAt),
		CancelledAt:     formatTime(job.CancelledAt),
	}

	if job.TipCents != nil {
		cents := int64(*job.TipCents)
		out.TipCents = &cents
		out.Tip = job.TipCents.Dollars()
	}

	return out
}

func toOfferDTO(offer *domain.Offer) dto.OfferDTO {
	return dto.OfferDTO{
		OfferID:     offer.OfferID,
		JobID:       offer.JobID,
		HelperID:    offer.HelperID,
		AmountCents: int64(offer.AmountCents),
		Amount:      offer.AmountCents.Dollars(),
		Note:        offer.Note,
		Accepted:    offer.Accepted,
		CreatedAt:   offer.CreatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
