package dto

import (
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/lifecycle"
)

// CreateJobRequest is the body of POST /jobs. Field rules are checked by the lifecycle.
type CreateJobRequest = lifecycle.CreateRequest

// AcceptJobRequest is the body of POST /jobs/accept
type AcceptJobRequest struct {
	JobID int64 `json:"job_id" binding:"required"`
}

// UpdateJobRequest is the body of PUT /jobs/:job_id
type UpdateJobRequest struct {
	TranslatorID    int64      `json:"translator_id"`
	TranslatorEmail string     `json:"translator_email" binding:"omitempty,email"`
	Due             *time.Time `json:"due"`
	FromLanguageID  int64      `json:"from_language_id"`
	Status          string     `json:"status"`
	AdminComments   string     `json:"admin_comments"`
	Reference       *string    `json:"reference"`
	SessionTime     string     `json:"session_time"`
}

// ToUpdate converts the body to a lifecycle update
func (r UpdateJobRequest) ToUpdate() lifecycle.UpdateRequest {
	return lifecycle.UpdateRequest{
		TranslatorID:    r.TranslatorID,
		TranslatorEmail: r.TranslatorEmail,
		Due:             r.Due,
		FromLanguageID:  r.FromLanguageID,
		Status:          domain.Status(r.Status),
		AdminComments:   r.AdminComments,
		Reference:       r.Reference,
		SessionTime:     r.SessionTime,
	}
}

// ErrorResponse is returned for requests rejected before reaching the lifecycle
type ErrorResponse struct {
	Status  domain.ResultStatus `json:"status"`
	Message string              `json:"message"`
}
