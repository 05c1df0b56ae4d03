package port

import (
	"context"

	"trialscope/internal/domain"
)

// LiteratureSearcher abstracts a bibliographic search backend.
type LiteratureSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.SearchRecord, error)
}
