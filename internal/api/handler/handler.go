package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/interpreter-booking/internal/api/dto"
	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/lifecycle"
)

// ActorKey is the gin context key holding the acting domain.User
const ActorKey = "actor"

// JobService is the lifecycle surface exposed over HTTP
type JobService interface {
	Create(ctx context.Context, actor domain.User, req lifecycle.CreateRequest) (domain.Result, error)
	AcceptJob(ctx context.Context, jobID int64, translator domain.User) (domain.Result, error)
	AcceptJobWithID(ctx context.Context, jobID int64, translator domain.User) (domain.Result, error)
	UpdateJob(ctx context.Context, jobID int64, actor domain.User, req lifecycle.UpdateRequest) (domain.Result, error)
	CancelJob(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error)
	EndJob(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error)
	CustomerNotCall(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error)
	Reopen(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error)
	GetPotentialJobs(ctx context.Context, translatorID int64) (domain.Result, error)
	ResendNotifications(ctx context.Context, jobID int64) (domain.Result, error)
	ResendSMSNotifications(ctx context.Context, jobID int64) (domain.Result, error)
}

// UserFinder loads the acting user
type UserFinder interface {
	FindUser(ctx context.Context, id int64) (domain.User, error)
}

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Service JobService
	Users   UserFinder
	// Checks are run by /health, keyed by component name
	Checks      map[string]HealthCheck
	ServiceName string
}

// JobHandler handles booking HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	service JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}

// Actor returns the user set by the actor middleware
func Actor(c *gin.Context) domain.User {
	v, _ := c.Get(ActorKey)
	u, _ := v.(domain.User)
	return u
}

// statusCode maps a lifecycle error to its HTTP status
func statusCode(err error) int {
	var te *domain.TransitionError
	switch {
	case domain.IsValidation(err):
		return http.StatusUnprocessableEntity
	case domain.IsConflict(err), errors.As(err, &te):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respond writes the result of a lifecycle call
func (h *JobHandler) respond(c *gin.Context, okStatus int, res domain.Result, err error) {
	if err == nil {
		c.JSON(okStatus, res)
		return
	}

	code := statusCode(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		_ = c.Error(err)
	}
	c.JSON(code, domain.Failure(err))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Status: domain.ResultFail, Message: message})
}

// idParam parses a positive int64 path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
