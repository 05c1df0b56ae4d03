package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trialscope/internal/domain"
	"trialscope/internal/logging"
	"trialscope/internal/middleware"
	"trialscope/internal/session"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondAccepted sends a 202 response for work continuing in the background.
func RespondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "session has ended or expired"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrCredentialInvalid):
		return http.StatusUnauthorized, "CREDENTIAL_INVALID", "the API key was rejected by the provider; set a valid credential first"
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest, "UNKNOWN_PROVIDER", "unknown provider; allowed: openai, anthropic"
	case errors.Is(err, domain.ErrUnknownModel):
		return http.StatusBadRequest, "UNKNOWN_MODEL", "model is not offered for this provider"
	case errors.Is(err, domain.ErrBatchInProgress):
		return http.StatusConflict, "BATCH_IN_PROGRESS", "a batch is already running for this session"
	case errors.Is(err, domain.ErrModeRequired):
		return http.StatusConflict, "MODE_REQUIRED", "results already exist; resend with mode new or append"
	case errors.Is(err, domain.ErrInvalidMode):
		return http.StatusBadRequest, "INVALID_MODE", "invalid mode; allowed: new, append"
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusConflict, "CONFIRMATION_REQUIRED", "clearing results requires confirm=true"
	case errors.Is(err, domain.ErrNoResults):
		return http.StatusNotFound, "NO_RESULTS", "there are no results to export"
	case errors.Is(err, domain.ErrInvalidSelection):
		return http.StatusBadRequest, "INVALID_SELECTION", "row selection is out of range or repeats a row"
	case errors.Is(err, domain.ErrTextNotFound):
		return http.StatusNotFound, "TEXT_NOT_FOUND", "extracted text not found"
	case errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusBadRequest, "EMPTY_QUERY", "search query is required"
	case errors.Is(err, domain.ErrNoFiles):
		return http.StatusBadRequest, "MISSING_FILES", "at least one file is required"
	case errors.Is(err, domain.ErrTooManyFiles):
		return http.StatusBadRequest, "TOO_MANY_FILES", "too many files in one batch"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, jpg, jpeg, png"
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		return http.StatusBadRequest, "UNSUPPORTED_LANGUAGE", "unsupported OCR language"
	case errors.Is(err, domain.ErrAcquisitionFailure):
		return http.StatusBadGateway, "ACQUISITION_FAILED", "literature search failed or returned no results"
	case errors.Is(err, domain.ErrIngestionFailure):
		return http.StatusBadGateway, "INGESTION_FAILED", "text extraction from the file failed"
	case errors.Is(err, domain.ErrExtractionFailure):
		return http.StatusBadGateway, "EXTRACTION_FAILED", "the model call failed"
	case errors.Is(err, domain.ErrArchiveDisabled):
		return http.StatusServiceUnavailable, "ARCHIVE_DISABLED", "export archive is not configured"
	case errors.Is(err, domain.ErrArchiveFailed):
		return http.StatusBadGateway, "ARCHIVE_FAILED", "export upload to storage failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		logging.FromContext(c.Request.Context()).Error().Err(err).Interface("request_id", requestID).Msg("handler: internal error")
	}
	RespondError(c, status, code, msg)
}

// sessionFromContext returns the session loaded by the auth middleware.
// Returns false if it is missing (error response already written).
func sessionFromContext(c *gin.Context) (*session.State, bool) {
	st, err := middleware.GetSession(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing session context")
		return nil, false
	}
	return st, true
}
