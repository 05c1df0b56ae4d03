package domain

import (
	"fmt"
	"strings"
)

// FileType represents the document formats accepted for ingestion.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeJPG FileType = "jpg"
	FileTypePNG FileType = "png"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF: "application/pdf",
	FileTypeJPG: "image/jpeg",
	FileTypePNG: "image/png",
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
}

// SourceKind identifies where the items of a batch came from.
type SourceKind string

const (
	SourceSearch   SourceKind = "pubmed"
	SourceDocument SourceKind = "document"
)

// BatchMode selects how a new batch merges with the results already held by
// a session.
type BatchMode string

const (
	ModeNew    BatchMode = "new"
	ModeAppend BatchMode = "append"
)

// ParseBatchMode validates a user-supplied mode. An empty string yields an
// empty mode so callers can decide whether a choice is required.
func ParseBatchMode(s string) (BatchMode, error) {
	switch BatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case ModeNew:
		return ModeNew, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Provider names a completion API.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ParseProvider accepts the provider names used in requests and config.
// "claude" is accepted as an alias for anthropic.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}
