package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trialscope/internal/config"
	"trialscope/internal/csvexport"
	"trialscope/internal/domain"
	"trialscope/internal/port"
	"trialscope/internal/session"
	"trialscope/internal/xlsxexport"
)

// ExportFormat selects the export file type.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

// ParseExportFormat validates a user-supplied format; empty means xlsx.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ExportFile is an in-memory download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ArchiveResult describes an export uploaded to the archive bucket.
type ArchiveResult struct {
	Key       string    `json:"key"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders session results and extracted texts as downloads.
type ExportService interface {
	// Export renders the selected rows (all rows when rows is empty).
	Export(st *session.State, rows []int, format ExportFormat) (*ExportFile, error)
	// Archive uploads the selected rows as xlsx and returns a presigned URL.
	Archive(ctx context.Context, st *session.State, rows []int) (*ArchiveResult, error)
	// Text returns the extracted text of one document as a .txt download.
	Text(st *session.State, index int) (*ExportFile, error)
	// Purge deletes every archive uploaded for a session.
	Purge(ctx context.Context, sessionID string)
}

type exportService struct {
	storage port.ObjectStorage
	cfg     config.S3Config
	now     func() time.Time

	mu       sync.Mutex
	archives map[string][]string
}

// NewExportService creates a new ExportService implementation. storage may
// be nil when no archive bucket is configured.
func NewExportService(storage port.ObjectStorage, cfg config.S3Config) ExportService {
	return &exportService{
		storage:  storage,
		cfg:      cfg,
		now:      time.Now,
		archives: make(map[string][]string),
	}
}

func (s *exportService) Export(st *session.State, rows []int, format ExportFormat) (*ExportFile, error) {
	records, err := SelectRows(st.Results(), rows)
	if err != nil {
		return nil, err
	}

	filename := s.filename(st, rows)
	if format == FormatCSV {
		data, err := csvexport.ToCSV(records)
		if err != nil {
			return nil, fmt.Errorf("rendering csv: %w", err)
		}
		return &ExportFile{
			Filename:    strings.TrimSuffix(filename, ".xlsx") + ".csv",
			ContentType: csvexport.ContentType,
			Data:        data,
		}, nil
	}

	data, err := xlsxexport.ToSpreadsheet(records)
	if err != nil {
		return nil, fmt.Errorf("rendering spreadsheet: %w", err)
	}
	return &ExportFile{Filename: filename, ContentType: xlsxexport.ContentType, Data: data}, nil
}

func (s *exportService) Archive(ctx context.Context, st *session.State, rows []int) (*ArchiveResult, error) {
	if s.storage == nil || !s.cfg.Enabled() {
		return nil, domain.ErrArchiveDisabled
	}
	file, err := s.Export(st, rows, FormatXLSX)
	if err != nil {
		return nil, err
	}

	key := path.Join(s.cfg.Prefix, st.ID(), uuid.New().String(), file.Filename)
	if _, err := s.storage.Put(ctx, port.ArchiveObject{
		Key:         key,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Data:        file.Data,
	}); err != nil {
		log.Error().Err(err).Str("session_id", st.ID()).Str("key", key).Msg("exportService.Archive: upload failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrArchiveFailed, err)
	}

	s.mu.Lock()
	s.archives[st.ID()] = append(s.archives[st.ID()], key)
	s.mu.Unlock()

	ttl := time.Duration(s.cfg.PresignExpiry) * time.Second
	url, err := s.storage.PresignGet(ctx, key, file.Filename, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrArchiveFailed, err)
	}

	log.Info().Str("session_id", st.ID()).Str("key", key).Int("bytes", len(file.Data)).
		Msg("exportService.Archive: export archived")
	return &ArchiveResult{
		Key:       key,
		Filename:  file.Filename,
		URL:       url,
		ExpiresAt: s.now().Add(ttl),
	}, nil
}

func (s *exportService) Text(st *session.State, index int) (*ExportFile, error) {
	text, err := st.Text(index)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    xlsxexport.TextFilename(text.Filename),
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte(text.Content),
	}, nil
}

func (s *exportService) Purge(ctx context.Context, sessionID string) {
	s.mu.Lock()
	keys := s.archives[sessionID]
	delete(s.archives, sessionID)
	s.mu.Unlock()

	if s.storage == nil || len(keys) == 0 {
		return
	}
	if err := s.storage.DeleteKeys(ctx, keys); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Int("keys", len(keys)).Msg("exportService.Purge: delete failed")
		return
	}
	log.Debug().Str("session_id", sessionID).Int("keys", len(keys)).Msg("exportService.Purge: archives deleted")
}

func (s *exportService) filename(st *session.State, rows []int) string {
	now := s.now()
	if len(rows) > 0 {
		return xlsxexport.SelectedFilename(now)
	}
	return xlsxexport.Filename(st.LastSource(), st.LastQuery(), now)
}

// SelectRows returns the records at the given 0-based indices, in the order
// given. An empty selection returns every record.
func SelectRows(records []domain.ExtractedRecord, rows []int) ([]domain.ExtractedRecord, error) {
	if len(records) == 0 {
		return nil, domain.ErrNoResults
	}
	if len(rows) == 0 {
		return records, nil
	}

	seen := make(map[int]struct{}, len(rows))
	out := make([]domain.ExtractedRecord, 0, len(rows))
	for _, i := range rows {
		if i < 0 || i >= len(records) {
			return nil, fmt.Errorf("%w: row %d out of range [0,%d)", domain.ErrInvalidSelection, i, len(records))
		}
		if _, dup := seen[i]; dup {
			return nil, fmt.Errorf("%w: row %d selected twice", domain.ErrInvalidSelection, i)
		}
		seen[i] = struct{}{}
		out = append(out, records[i])
	}
	return out, nil
}
