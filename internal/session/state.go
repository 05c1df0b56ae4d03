// Package session holds the per-user working state of interactive analysis
// sessions: accumulated results, progress and pending confirmations.
package session

import (
	"sync"
	"time"

	"trialscope/internal/domain"
)

// State is the working state of one session. All access goes through its
// methods, which serialize on an internal mutex.
type State struct {
	mu sync.RWMutex

	id        string
	createdAt time.Time
	lastSeen  time.Time

	results    []domain.ExtractedRecord
	texts      []domain.ExtractedText
	itemErrors []domain.ItemError

	progress   float64
	totalItems int
	processed  int

	searchCompleted           bool
	documentAnalysisCompleted bool

	pendingModeChoice        bool
	pendingClearConfirmation bool

	provider        domain.ProviderSettings
	credentialValid bool

	running    bool
	ended      bool
	lastQuery  string
	lastSource domain.SourceKind
	lastError  string
}

// NewState returns an empty state.
func NewState(id string) *State {
	now := time.Now()
	return &State{id: id, createdAt: now, lastSeen: now}
}

// ID returns the session id.
func (s *State) ID() string {
	return s.id
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID                        string             `json:"id"`
	CreatedAt                 time.Time          `json:"created_at"`
	ResultCount               int                `json:"result_count"`
	TextCount                 int                `json:"text_count"`
	Progress                  float64            `json:"progress"`
	TotalItems                int                `json:"total_items"`
	Processed                 int                `json:"processed"`
	SearchCompleted           bool               `json:"search_completed"`
	DocumentAnalysisCompleted bool               `json:"document_analysis_completed"`
	PendingModeChoice         bool               `json:"pending_mode_choice"`
	PendingClearConfirmation  bool               `json:"pending_clear_confirmation"`
	Provider                  domain.Provider    `json:"provider,omitempty"`
	Model                     string             `json:"model,omitempty"`
	CredentialValid           bool               `json:"credential_valid"`
	Running                   bool               `json:"running"`
	LastQuery                 string             `json:"last_query,omitempty"`
	LastSource                domain.SourceKind  `json:"last_source,omitempty"`
	LastError                 string             `json:"last_error,omitempty"`
	ItemErrors                []domain.ItemError `json:"item_errors"`
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	errs := make([]domain.ItemError, len(s.itemErrors))
	copy(errs, s.itemErrors)
	return Snapshot{
		ID:                        s.id,
		CreatedAt:                 s.createdAt,
		ResultCount:               len(s.results),
		TextCount:                 len(s.texts),
		Progress:                  s.progress,
		TotalItems:                s.totalItems,
		Processed:                 s.processed,
		SearchCompleted:           s.searchCompleted,
		DocumentAnalysisCompleted: s.documentAnalysisCompleted,
		PendingModeChoice:         s.pendingModeChoice,
		PendingClearConfirmation:  s.pendingClearConfirmation,
		Provider:                  s.provider.Provider,
		Model:                     s.provider.Model,
		CredentialValid:           s.credentialValid,
		Running:                   s.running,
		LastQuery:                 s.lastQuery,
		LastSource:                s.lastSource,
		LastError:                 s.lastError,
		ItemErrors:                errs,
	}
}

// Results returns copies of the accumulated records in order.
func (s *State) Results() []domain.ExtractedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExtractedRecord, len(s.results))
	for i, r := range s.results {
		out[i] = r.Clone()
	}
	return out
}

// Texts returns the extracted document texts in order.
func (s *State) Texts() []domain.ExtractedText {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExtractedText, len(s.texts))
	copy(out, s.texts)
	return out
}

// Text returns the extracted text at a 0-based index.
func (s *State) Text(index int) (domain.ExtractedText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.texts) {
		return domain.ExtractedText{}, domain.ErrTextNotFound
	}
	return s.texts[index], nil
}

// SetCredential records the chosen provider and whether its key validated.
func (s *State) SetCredential(settings domain.ProviderSettings, valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = settings
	s.credentialValid = valid
}

// Credential returns the provider settings and whether they were validated.
func (s *State) Credential() (domain.ProviderSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider, s.credentialValid
}

// ResolveMode decides how a new batch merges with existing results. An
// explicit mode is always honored. Without one, an empty session starts fresh
// and a session holding results raises the pending choice flag.
func (s *State) ResolveMode(mode domain.BatchMode) (domain.BatchMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveModeLocked(mode)
}

func (s *State) resolveModeLocked(mode domain.BatchMode) (domain.BatchMode, error) {
	if mode != "" {
		s.pendingModeChoice = false
		return mode, nil
	}
	if len(s.results) == 0 {
		s.pendingModeChoice = false
		return domain.ModeNew, nil
	}
	s.pendingModeChoice = true
	return "", domain.ErrModeRequired
}

// TryStart marks a batch as running. It fails if one is already running or
// the session has ended.
func (s *State) TryStart(source domain.SourceKind, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(source, query)
}

// StartBatch resolves mode and marks a batch as running in one step. A running
// batch is reported before the mode is looked at.
func (s *State) StartBatch(source domain.SourceKind, query string, mode domain.BatchMode) (domain.BatchMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkStartableLocked(); err != nil {
		return "", err
	}
	resolved, err := s.resolveModeLocked(mode)
	if err != nil {
		return "", err
	}
	return resolved, s.startLocked(source, query)
}

func (s *State) checkStartableLocked() error {
	if s.ended {
		return domain.ErrSessionNotFound
	}
	if s.running {
		return domain.ErrBatchInProgress
	}
	return nil
}

func (s *State) startLocked(source domain.SourceKind, query string) error {
	if err := s.checkStartableLocked(); err != nil {
		return err
	}
	s.running = true
	s.lastSource = source
	s.lastError = ""
	if source == domain.SourceSearch {
		s.lastQuery = query
	}
	return nil
}

// TryEnd marks the session as ended unless a batch is running. Once ended no
// batch can start.
func (s *State) TryEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return domain.ErrBatchInProgress
	}
	s.ended = true
	return nil
}

// Finish clears the running flag and records a batch-level error, if any.
func (s *State) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil {
		s.lastError = err.Error()
	}
}

// Running reports whether a batch is in progress.
func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// BeginBatch prepares the state for a batch of total items. ModeNew drops
// previous results, and for document batches previous texts too. Progress
// counters are scoped to this call.
func (s *State) BeginBatch(mode domain.BatchMode, source domain.SourceKind, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == domain.ModeNew {
		s.results = nil
		if source == domain.SourceDocument {
			s.texts = nil
		}
	}
	s.itemErrors = nil
	s.totalItems = total
	s.processed = 0
	s.progress = 0
}

// AddText stores the extracted text of a document.
func (s *State) AddText(t domain.ExtractedText) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, t)
}

// AppendRecord adds a record at the tail of the results.
func (s *State) AppendRecord(rec domain.ExtractedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, rec)
}

// AddItemError records a failed item.
func (s *State) AddItemError(e domain.ItemError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemErrors = append(s.itemErrors, e)
}

// Advance counts one processed item and returns the new progress.
func (s *State) Advance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed++
	if s.totalItems > 0 {
		s.progress = float64(s.processed) / float64(s.totalItems)
	}
	return s.progress
}

// Progress returns the fraction of the current batch processed.
func (s *State) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Complete sets the completion flags for a finished batch. Document batches
// set both flags.
func (s *State) Complete(source domain.SourceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchCompleted = true
	if source == domain.SourceDocument {
		s.documentAnalysisCompleted = true
	}
}

// RequestClear empties the state when confirmed. Without confirmation it
// raises the pending flag and returns ErrConfirmationRequired.
func (s *State) RequestClear(confirm bool) error {
	if !confirm {
		s.mu.Lock()
		s.pendingClearConfirmation = true
		s.mu.Unlock()
		return domain.ErrConfirmationRequired
	}
	return s.Clear()
}

// Clear resets results, texts, counters and flags. The chosen credential is
// kept. A running batch must finish first.
func (s *State) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return domain.ErrBatchInProgress
	}
	s.results = nil
	s.texts = nil
	s.itemErrors = nil
	s.progress = 0
	s.totalItems = 0
	s.processed = 0
	s.searchCompleted = false
	s.documentAnalysisCompleted = false
	s.pendingModeChoice = false
	s.pendingClearConfirmation = false
	s.lastQuery = ""
	s.lastSource = ""
	s.lastError = ""
	return nil
}

// LastQuery returns the query of the most recent search batch.
func (s *State) LastQuery() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastQuery
}

// LastSource returns the source of the most recent batch.
func (s *State) LastSource() domain.SourceKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSource
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen), s.running
}
