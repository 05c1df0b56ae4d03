package domain

import (
	"errors"
	"fmt"
)

// Workflow failures.
var (
	ErrCredentialInvalid  = errors.New("invalid credential")
	ErrAcquisitionFailure = errors.New("acquisition failed")
	ErrIngestionFailure   = errors.New("ingestion failed")
	ErrExtractionFailure  = errors.New("extraction failed")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
)

// Session and request errors.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrBatchInProgress      = errors.New("a batch is already running for this session")
	ErrModeRequired         = errors.New("results already exist; choose mode new or append")
	ErrInvalidMode          = errors.New("invalid batch mode")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrNoResults            = errors.New("no results to export")
	ErrInvalidSelection     = errors.New("invalid row selection")
	ErrTextNotFound         = errors.New("extracted text not found")
	ErrUnknownProvider      = errors.New("unknown completion provider")
	ErrUnknownModel         = errors.New("unknown model for provider")
	ErrEmptyQuery           = errors.New("search query is empty")
	ErrNoFiles              = errors.New("no files provided")
	ErrTooManyFiles         = errors.New("too many files in one batch")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedLanguage  = errors.New("unsupported OCR language")
	ErrArchiveDisabled      = errors.New("export archive is not configured")
	ErrArchiveFailed        = errors.New("export archive upload failed")
)

// ItemError reports the failure of a single batch item. Index is 1-based.
type ItemError struct {
	Index   int    `json:"index"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (e ItemError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("item %d: %s", e.Index, e.Message)
	}
	return fmt.Sprintf("item %d (%s): %s", e.Index, e.Source, e.Message)
}

// ExtractionError is returned by a failed extraction call. It matches both
// ErrExtractionFailure and its cause under errors.Is.
type ExtractionError struct {
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrExtractionFailure, e.Cause)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtractionFailure, e.Cause}
}
