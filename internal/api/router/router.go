package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/interpreter-booking/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps))

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1", ActorMiddleware(deps.Users, deps.Logger))
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.POST("/accept", jobHandler.AcceptJobWithID)
			jobs.PUT("/:job_id", jobHandler.UpdateJob)
			jobs.POST("/:job_id/accept", jobHandler.AcceptJob)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
			jobs.POST("/:job_id/end", jobHandler.EndJob)
			jobs.POST("/:job_id/customer-not-call", jobHandler.CustomerNotCall)
			jobs.POST("/:job_id/reopen", jobHandler.ReopenJob)
			jobs.POST("/:job_id/notifications/resend", jobHandler.ResendNotifications)
			jobs.POST("/:job_id/notifications/resend-sms", jobHandler.ResendSMSNotifications)
		}

		v1.GET("/translators/:translator_id/potential-jobs", jobHandler.GetPotentialJobs)
	}

	return r
}

// healthHandler runs every registered check and reports 503 when one fails
func healthHandler(deps *handler.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		for name, check := range deps.Checks {
			if err := check(ctx); err != nil {
				deps.Logger.Warn("Health check failed", slog.String("component", name), slog.Any("error", err))
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		health := "healthy"
		if status != http.StatusOK {
			health = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":  health,
			"service": deps.ServiceName,
			"checks":  checks,
		})
	}
}
