package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/porchjobs/marketplace-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	r.Use(ActorMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "marketplace-api-service",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "marketplace-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	userHandler := handler.NewUserHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)

			jobs.POST("/:job_id/offers", jobHandler.SubmitOffer)
			jobs.GET("/:job_id/offers", jobHandler.ListOffers)
			jobs.POST("/:job_id/offers/:offer_id/accept", jobHandler.AcceptOffer)

			jobs.POST("/:job_id/start", jobHandler.StartJob)
			jobs.POST("/:job_id/request-completion", jobHandler.RequestCompletion)
			jobs.POST("/:job_id/confirm-completion", jobHandler.ConfirmCompletion)
			jobs.POST("/:job_id/tip", jobHandler.Tip)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		users := v1.Group("/users")
		{
			users.GET("/:user_id/eligibility", userHandler.Eligibility)
			users.PUT("/:user_id/payment-profile", userHandler.UpdatePaymentProfile)
			users.POST("/:user_id/payout-account", userHandler.CreatePayoutAccount)
		}
	}

	return r
}
