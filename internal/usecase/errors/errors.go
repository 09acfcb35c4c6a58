package errors

import "errors"

// Common errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInternalError = errors.New("internal server error")
)

// Transcript record errors
var (
	ErrRecordNotFound    = errors.New("transcript record not found")
	ErrRecordIneligible  = errors.New("transcript record has no text")
	ErrInvalidSourceKind = errors.New("invalid transcript source kind")
)

// Pipeline errors
var (
	ErrRiskAssessmentFailed = errors.New("risk assessment failed")
	ErrDispatchFailed       = errors.New("failed to dispatch processing event")
	ErrWorkerPoolRunning    = errors.New("worker pool already running")
	ErrWorkerPoolStopped    = errors.New("worker pool not running")
)
