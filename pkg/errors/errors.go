// Package errors defines the standardized API error taxonomy shared by the
// REST adapter, the orchestrator and the job queue.
package errors

import "net/http"

// APIError represents a standardized API error response
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Status  int                    `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// WithDetails adds details to an error
func (e *APIError) WithDetails(details map[string]interface{}) *APIError {
	newErr := *e
	newErr.Details = details
	return &newErr
}

// Common error definitions, one family per taxonomy entry in the design doc.
var (
	// ValidationError (400) — request shape wrong.
	ErrInvalidRequest = &APIError{
		Code:    "INVALID_REQUEST",
		Message: "Invalid request body",
		Status:  http.StatusBadRequest,
	}

	ErrInvalidPrompt = &APIError{
		Code:    "INVALID_PROMPT",
		Message: "Prompt must not be empty",
		Status:  http.StatusBadRequest,
	}

	ErrInvalidScenario = &APIError{
		Code:    "INVALID_SCENARIO",
		Message: "Scenario must have a non-empty timeline; every item needs a unique id and a kind",
		Status:  http.StatusBadRequest,
	}

	// NotFound (404) — resource missing.
	ErrGenerationNotFound = &APIError{
		Code:    "GENERATION_NOT_FOUND",
		Message: "Scene generation not found",
		Status:  http.StatusNotFound,
	}

	ErrSceneNotFound = &APIError{
		Code:    "SCENE_NOT_FOUND",
		Message: "Scene not found",
		Status:  http.StatusNotFound,
	}

	ErrNotFound = &APIError{
		Code:    "NOT_FOUND",
		Message: "Resource not found",
		Status:  http.StatusNotFound,
	}

	// InvalidState (400) — e.g. continue on a non-paused generation.
	ErrInvalidState = &APIError{
		Code:    "INVALID_STATE",
		Message: "Generation is not in a state that allows this operation",
		Status:  http.StatusBadRequest,
	}

	// RateLimit (429).
	ErrRateLimitExceeded = &APIError{
		Code:    "RATE_LIMIT_EXCEEDED",
		Message: "Rate limit exceeded",
		Status:  http.StatusTooManyRequests,
	}

	// UpstreamFailure — an LLM/vision/transcription/image-gen collaborator
	// returned an error or timed out.
	ErrUpstreamFailure = &APIError{
		Code:    "UPSTREAM_FAILURE",
		Message: "An upstream AI service failed",
		Status:  http.StatusBadGateway,
	}

	ErrScenarioInvalid = &APIError{
		Code:    "SCENARIO_INVALID",
		Message: "The generated scenario failed validation",
		Status:  http.StatusBadGateway,
	}

	// MediaError — FFmpeg non-zero exit or missing/empty output.
	ErrMediaError = &APIError{
		Code:    "MEDIA_ERROR",
		Message: "Media processing failed",
		Status:  http.StatusUnprocessableEntity,
	}

	ErrNoPipeline = &APIError{
		Code:    "NO_PIPELINE",
		Message: "No rendering pipeline registered for this scene kind",
		Status:  http.StatusUnprocessableEntity,
	}

	// NothingToCompose — phase 4 found zero completed scenes.
	ErrNothingToCompose = &APIError{
		Code:    "NOTHING_TO_COMPOSE",
		Message: "No scenes completed successfully; nothing to compose",
		Status:  http.StatusUnprocessableEntity,
	}

	// QueueUnavailable — queue backend down; the caller degrades to inline mode.
	ErrQueueUnavailable = &APIError{
		Code:    "QUEUE_UNAVAILABLE",
		Message: "Job queue is unavailable",
		Status:  http.StatusServiceUnavailable,
	}

	// Internal — catch-all; message hidden outside development mode.
	ErrInternalServer = &APIError{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "An internal server error occurred",
		Status:  http.StatusInternalServerError,
	}

	ErrDatabaseError = &APIError{
		Code:    "DATABASE_ERROR",
		Message: "Database operation failed",
		Status:  http.StatusInternalServerError,
	}

	ErrStorageError = &APIError{
		Code:    "STORAGE_ERROR",
		Message: "Storage operation failed",
		Status:  http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &APIError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: "Service temporarily unavailable",
		Status:  http.StatusServiceUnavailable,
	}
)

// ErrorResponse is the JSON response for errors
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewAPIError creates a new API error
func NewAPIError(base *APIError, message string, details map[string]interface{}) *APIError {
	err := *base
	if message != "" {
		err.Message = message
	}
	if details != nil {
		err.Details = details
	}
	return &err
}

// NewValidationError creates a field-specific validation error derived from ErrInvalidRequest.
func NewValidationError(field, message string) *APIError {
	return NewAPIError(ErrInvalidRequest, message, map[string]interface{}{
		"field": field,
	})
}

// NewServiceError creates a sanitized internal server error for downstream service failures.
func NewServiceError(service, message string) *APIError {
	return NewAPIError(ErrInternalServer, message, map[string]interface{}{
		"service": service,
	})
}

// NewUpstreamError creates an UpstreamFailure error naming the collaborator that failed.
func NewUpstreamError(collaborator, message string) *APIError {
	return NewAPIError(ErrUpstreamFailure, message, map[string]interface{}{
		"collaborator": collaborator,
	})
}

// Internal returns the catch-all internal error for err. Development
// environments surface the raw message; anything else hides it behind the
// taxonomy's generic text.
func Internal(environment string, err error) *APIError {
	if environment == "development" {
		return NewAPIError(ErrInternalServer, err.Error(), nil)
	}
	return ErrInternalServer
}
