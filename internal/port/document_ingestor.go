package port

import (
	"context"

	"trialscope/internal/domain"
)

// IngestInput carries an uploaded file and its text-extraction options.
type IngestInput struct {
	Filename string
	Data     []byte
	UseOCR   bool
	Language string
}

// DocumentIngestor turns an uploaded file into plain text.
type DocumentIngestor interface {
	Ingest(ctx context.Context, input IngestInput) (*domain.DocumentText, error)
}
