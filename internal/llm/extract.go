package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"trialscope/internal/domain"
	"trialscope/internal/port"
)

// Extractor turns one piece of article content into an ExtractedRecord with a
// single completion call.
type Extractor struct {
	completer port.Completer
	model     string
}

// NewExtractor creates an Extractor. An empty model lets the completer use
// its own default.
func NewExtractor(completer port.Completer, model string) *Extractor {
	return &Extractor{completer: completer, model: model}
}

// Extract sends content to the model and parses the reply. Every failure is
// returned as a *domain.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, content string, isDocument bool) (domain.ExtractedRecord, error) {
	text, err := e.completer.Complete(ctx, port.CompletionRequest{
		SystemPrompt: BuildExtractionPrompt(isDocument),
		UserContent:  content,
		Model:        e.model,
	})
	if err != nil {
		return domain.ExtractedRecord{}, &domain.ExtractionError{Cause: err}
	}

	rec, err := ParseRecord(text)
	if err != nil {
		return domain.ExtractedRecord{}, &domain.ExtractionError{Cause: err}
	}
	return rec, nil
}

// StripFences removes markdown code fences the model sometimes wraps its
// JSON in.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseRecord decodes a model reply into a record, keeping key order.
func ParseRecord(text string) (domain.ExtractedRecord, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return domain.ExtractedRecord{}, errors.New("empty model output")
	}

	var rec domain.ExtractedRecord
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return domain.ExtractedRecord{}, &OutputError{Err: err, Raw: truncate(cleaned, 500)}
	}
	return rec, nil
}
