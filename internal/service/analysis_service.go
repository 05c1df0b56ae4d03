package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/llm"
	"trialscope/internal/port"
	"trialscope/internal/session"
)

// CompleterFactory builds a completion client for a session's provider settings.
type CompleterFactory func(settings domain.ProviderSettings) (port.Completer, error)

// NewCompleterFactory returns a CompleterFactory backed by the registered
// llm providers.
func NewCompleterFactory(cfg config.LLMConfig) CompleterFactory {
	return func(settings domain.ProviderSettings) (port.Completer, error) {
		return llm.NewCompleter(cfg.ProviderConfig(string(settings.Provider), settings.APIKey, settings.Model))
	}
}

// ProgressFunc is called after each item is committed.
type ProgressFunc func(processed, total int)

// SearchBatchInput is the DTO for a literature-search batch.
type SearchBatchInput struct {
	Query      string
	MaxResults int
	Mode       domain.BatchMode
	OnProgress ProgressFunc
}

// DocumentBatchInput is the DTO for an uploaded-document batch.
type DocumentBatchInput struct {
	Uploads    []domain.Upload
	UseOCR     bool
	Language   string
	Mode       domain.BatchMode
	OnProgress ProgressFunc
}

// BatchResult summarizes a finished batch.
type BatchResult struct {
	Source    domain.SourceKind  `json:"source"`
	Mode      domain.BatchMode   `json:"mode"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Errors    []domain.ItemError `json:"errors"`
}

// Outcome is the result of processing one batch item. Exactly one of Record
// and Err is set. Text is set for document items whose ingestion succeeded.
type Outcome struct {
	Index  int
	Record *domain.ExtractedRecord
	Text   *domain.ExtractedText
	Err    *domain.ItemError
}

// OK reports whether the item produced a record.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Record != nil
}

// AnalysisService orchestrates acquisition and per-item extraction.
type AnalysisService interface {
	// RunSearchBatch searches, then extracts every hit, blocking until done.
	RunSearchBatch(ctx context.Context, st *session.State, input SearchBatchInput) (*BatchResult, error)
	// RunDocumentBatch ingests and extracts every upload, blocking until done.
	RunDocumentBatch(ctx context.Context, st *session.State, input DocumentBatchInput) (*BatchResult, error)
	// StartSearchBatch validates the request and runs it in the background.
	StartSearchBatch(st *session.State, input SearchBatchInput) error
	// StartDocumentBatch validates the request and runs it in the background.
	StartDocumentBatch(st *session.State, input DocumentBatchInput) error
	// Wait blocks until all background batches have finished.
	Wait()
}

type analysisService struct {
	searcher     port.LiteratureSearcher
	ingestor     port.DocumentIngestor
	newCompleter CompleterFactory
	cfg          config.AnalysisConfig
	wg           sync.WaitGroup
}

// NewAnalysisService creates a new AnalysisService implementation.
func NewAnalysisService(
	searcher port.LiteratureSearcher,
	ingestor port.DocumentIngestor,
	newCompleter CompleterFactory,
	cfg config.AnalysisConfig,
) AnalysisService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &analysisService{
		searcher:     searcher,
		ingestor:     ingestor,
		newCompleter: newCompleter,
		cfg:          cfg,
	}
}

// batchJob is a validated batch whose session has been marked running.
type batchJob struct {
	source     domain.SourceKind
	mode       domain.BatchMode
	extractor  *llm.Extractor
	acquire    func(ctx context.Context) ([]domain.RawItem, error)
	useOCR     bool
	language   string
	onProgress ProgressFunc
}

func (s *analysisService) RunSearchBatch(ctx context.Context, st *session.State, input SearchBatchInput) (*BatchResult, error) {
	job, err := s.prepareSearch(st, input)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, st, job)
}

func (s *analysisService) RunDocumentBatch(ctx context.Context, st *session.State, input DocumentBatchInput) (*BatchResult, error) {
	job, err := s.prepareDocuments(st, input)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, st, job)
}

func (s *analysisService) StartSearchBatch(st *session.State, input SearchBatchInput) error {
	job, err := s.prepareSearch(st, input)
	if err != nil {
		return err
	}
	s.background(st, job)
	return nil
}

func (s *analysisService) StartDocumentBatch(st *session.State, input DocumentBatchInput) error {
	job, err := s.prepareDocuments(st, input)
	if err != nil {
		return err
	}
	s.background(st, job)
	return nil
}

func (s *analysisService) Wait() {
	s.wg.Wait()
}

func (s *analysisService) background(st *session.State, job *batchJob) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Use a fresh context independent of the request so the batch
		// completes after the HTTP response has been sent.
		ctx := context.Background()
		if _, err := s.execute(ctx, st, job); err != nil {
			log.Warn().Err(err).Str("session_id", st.ID()).Str("source", string(job.source)).
				Msg("analysisService.background: batch ended with error")
		}
	}()
}

func (s *analysisService) prepareSearch(st *session.State, input SearchBatchInput) (*batchJob, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	extractor, err := s.extractorFor(st)
	if err != nil {
		return nil, err
	}
	mode, err := st.StartBatch(domain.SourceSearch, query, input.Mode)
	if err != nil {
		return nil, err
	}

	return &batchJob{
		source:    domain.SourceSearch,
		mode:      mode,
		extractor: extractor,
		acquire: func(ctx context.Context) ([]domain.RawItem, error) {
			records, err := s.searcher.Search(ctx, query, input.MaxResults)
			if err != nil {
				return nil, err
			}
			if len(records) == 0 {
				return nil, fmt.Errorf("%w: no results for %q", domain.ErrAcquisitionFailure, query)
			}
			items := make([]domain.RawItem, 0, len(records))
			for _, r := range records {
				items = append(items, domain.SearchItem(r))
			}
			return items, nil
		},
		onProgress: input.OnProgress,
	}, nil
}

func (s *analysisService) prepareDocuments(st *session.State, input DocumentBatchInput) (*batchJob, error) {
	if len(input.Uploads) == 0 {
		return nil, domain.ErrNoFiles
	}
	extractor, err := s.extractorFor(st)
	if err != nil {
		return nil, err
	}
	mode, err := st.StartBatch(domain.SourceDocument, "", input.Mode)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(input.Uploads))
	for _, u := range input.Uploads {
		items = append(items, domain.DocumentItem(u))
	}
	return &batchJob{
		source:    domain.SourceDocument,
		mode:      mode,
		extractor: extractor,
		acquire: func(context.Context) ([]domain.RawItem, error) {
			return items, nil
		},
		useOCR:     input.UseOCR,
		language:   input.Language,
		onProgress: input.OnProgress,
	}, nil
}

// extractorFor builds an Extractor for the session's validated credential.
func (s *analysisService) extractorFor(st *session.State) (*llm.Extractor, error) {
	settings, valid := st.Credential()
	if !valid {
		return nil, domain.ErrCredentialInvalid
	}
	completer, err := s.newCompleter(settings)
	if err != nil {
		return nil, fmt.Errorf("building completion client: %w", err)
	}
	return llm.NewExtractor(completer, settings.Model), nil
}

// execute acquires the items and runs the batch. The session's running flag
// is cleared on return.
func (s *analysisService) execute(ctx context.Context, st *session.State, job *batchJob) (result *BatchResult, err error) {
	defer func() { st.Finish(err) }()

	items, err := job.acquire(ctx)
	if err != nil {
		log.Error().Err(err).Str("session_id", st.ID()).Msg("analysisService.execute: acquisition failed")
		return nil, err
	}
	return s.runBatch(ctx, st, job, items), nil
}

// runBatch processes items and commits their outcomes to the session in
// input order. With concurrency above one, items are processed by a bounded
// worker pool while a single committer preserves order.
func (s *analysisService) runBatch(ctx context.Context, st *session.State, job *batchJob, items []domain.RawItem) *BatchResult {
	start := time.Now()
	st.BeginBatch(job.mode, job.source, len(items))

	result := &BatchResult{Source: job.source, Mode: job.mode, Total: len(items), Errors: []domain.ItemError{}}
	commit := func(out Outcome) {
		s.commit(st, out, result)
		if job.onProgress != nil {
			job.onProgress(out.Index+1, len(items))
		}
	}

	if s.cfg.Concurrency == 1 || len(items) < 2 {
		for i, item := range items {
			commit(s.processItem(ctx, job, i, item))
		}
	} else {
		slots := make([]chan Outcome, len(items))
		for i := range slots {
			slots[i] = make(chan Outcome, 1)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)
		go func() {
			for i, item := range items {
				g.Go(func() error {
					slots[i] <- s.processItem(gctx, job, i, item)
					return nil
				})
			}
		}()
		for i := range slots {
			commit(<-slots[i])
		}
		_ = g.Wait()
	}

	st.Complete(job.source)
	log.Info().
		Str("session_id", st.ID()).
		Str("source", string(job.source)).
		Str("mode", string(job.mode)).
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("analysisService.runBatch: batch complete")
	return result
}

func (s *analysisService) commit(st *session.State, out Outcome, result *BatchResult) {
	if out.Text != nil {
		st.AddText(*out.Text)
	}
	if out.OK() {
		st.AppendRecord(*out.Record)
		result.Succeeded++
	} else {
		st.AddItemError(*out.Err)
		result.Errors = append(result.Errors, *out.Err)
		result.Failed++
		log.Warn().Str("session_id", st.ID()).Int("item", out.Err.Index).Str("source", out.Err.Source).
			Str("error", out.Err.Message).Msg("analysisService.commit: item failed")
	}
	st.Advance()
}

// processItem ingests (for documents) and extracts one item. It never
// panics; every failure is reported in the Outcome.
func (s *analysisService) processItem(ctx context.Context, job *batchJob, index int, item domain.RawItem) (out Outcome) {
	out.Index = index
	fail := func(err error) Outcome {
		out.Err = &domain.ItemError{Index: index + 1, Source: item.Label(), Message: err.Error()}
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	itemCtx := ctx
	if s.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, s.cfg.ItemTimeout)
		defer cancel()
	}

	var content string
	switch {
	case item.IsDocument() && item.Upload != nil:
		doc, err := s.ingestor.Ingest(itemCtx, port.IngestInput{
			Filename: item.Upload.Filename,
			Data:     item.Upload.Data,
			UseOCR:   job.useOCR,
			Language: job.language,
		})
		if err != nil {
			return fail(err)
		}
		out.Text = &domain.ExtractedText{Filename: item.Upload.Filename, Content: doc.Content}
		content = doc.Content
	case item.Record != nil:
		content = item.Record.Text()
	default:
		return fail(fmt.Errorf("empty batch item"))
	}

	rec, err := job.extractor.Extract(itemCtx, content, item.IsDocument())
	if err != nil {
		return fail(err)
	}
	if item.IsDocument() {
		rec = withFilename(rec, item.Upload.Filename)
	}
	out.Record = &rec
	return out
}

// withFilename sets Filename on a copy of rec. A key the model already
// emitted keeps its position; otherwise Filename becomes the last column.
func withFilename(rec domain.ExtractedRecord, filename string) domain.ExtractedRecord {
	out := rec.Clone()
	out.Set(domain.FieldFilename, filename)
	return out
}
