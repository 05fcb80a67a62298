package domain

import "errors"

// ResultStatus is the outcome class reported to callers
type ResultStatus string

const (
	ResultSuccess  ResultStatus = "success"
	ResultFail     ResultStatus = "fail"
	ResultConflict ResultStatus = "conflict"
	ResultNotFound ResultStatus = "not_found"
)

// Result is the structured response of every caller-facing operation
type Result struct {
	Status     ResultStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	Job        *Job         `json:"job,omitempty"`
	Assignment *Assignment  `json:"assignment,omitempty"`
	Jobs       []Job        `json:"jobs,omitempty"`
}

// Succeed builds a success result
func Succeed(message string, job *Job, assignment *Assignment) Result {
	return Result{Status: ResultSuccess, Message: message, Job: job, Assignment: assignment}
}

// Failure maps an error to the result the caller sees
func Failure(err error) Result {
	var ve *ValidationError
	var ce *ConflictError
	var te *TransitionError

	switch {
	case errors.As(err, &ve):
		return Result{Status: ResultFail, Message: ve.Message}
	case errors.As(err, &ce):
		return Result{Status: ResultConflict, Message: ce.Message}
	case errors.As(err, &te):
		return Result{Status: ResultConflict, Message: te.Error()}
	case IsConflict(err):
		return Result{Status: ResultConflict, Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return Result{Status: ResultNotFound, Message: err.Error()}
	default:
		return Result{Status: ResultFail, Message: "internal error"}
	}
}
