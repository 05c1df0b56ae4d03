// Package ingest extracts plain text from uploaded PDFs and images using
// poppler and tesseract.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/port"
)

// Extraction methods reported in DocumentText.Method.
const (
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodImageOCR = "image-ocr"
)

const defaultLanguage = "eng"

// detectSampleSize bounds the text handed to the language detector.
const detectSampleSize = 4000

// Extractor implements port.DocumentIngestor.
type Extractor struct {
	cfg       config.OCRConfig
	runner    Runner
	detector  LanguageDetector
	languages []string
}

// NewExtractor creates an Extractor that shells out to the configured binaries.
func NewExtractor(cfg config.OCRConfig) *Extractor {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{defaultLanguage}
	}
	return &Extractor{
		cfg:       cfg,
		runner:    execRunner{},
		detector:  NewLanguageDetector(languages),
		languages: languages,
	}
}

// WithRunner replaces the command runner.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// WithDetector replaces the language detector. A nil detector disables
// automatic language selection.
func (e *Extractor) WithDetector(d LanguageDetector) *Extractor {
	e.detector = d
	return e
}

// Languages returns the supported OCR language codes.
func (e *Extractor) Languages() []string {
	return slices.Clone(e.languages)
}

// ValidateLanguage checks a requested OCR language. Empty and "auto" are
// always accepted.
func (e *Extractor) ValidateLanguage(lang string) error {
	if lang == "" || lang == AutoLanguage || slices.Contains(e.languages, lang) {
		return nil
	}
	return fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, lang)
}

// Ingest writes the upload to a temporary file and extracts its text. PDFs
// use the embedded text layer unless OCR is requested; images are always
// OCR'd.
func (e *Extractor) Ingest(ctx context.Context, input port.IngestInput) (*domain.DocumentText, error) {
	upload := domain.Upload{Filename: input.Filename, Data: input.Data}
	ext := upload.Extension()
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	if err := e.ValidateLanguage(input.Language); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "trialscope-ingest-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp dir: %w", domain.ErrIngestionFailure, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", tmpDir).Msg("ingest.Ingest: failed to remove temp dir")
		}
	}()

	path := filepath.Join(tmpDir, "input."+ext)
	if err := os.WriteFile(path, input.Data, 0o600); err != nil {
		return nil, fmt.Errorf("%w: writing temp file: %w", domain.ErrIngestionFailure, err)
	}

	var doc *domain.DocumentText
	switch {
	case fileType == domain.FileTypePDF && !input.UseOCR:
		doc, err = e.extractPDFText(ctx, path, input.Language)
	case fileType == domain.FileTypePDF:
		doc, err = e.withLanguage(ctx, input.Language, func(lang string) (*domain.DocumentText, error) {
			return e.pdfToOCR(ctx, path, tmpDir, lang)
		})
	default:
		doc, err = e.withLanguage(ctx, input.Language, func(lang string) (*domain.DocumentText, error) {
			return e.imageOCR(ctx, path, lang)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrIngestionFailure, input.Filename, err)
	}

	doc.Filename = input.Filename
	log.Debug().
		Str("filename", input.Filename).
		Str("method", doc.Method).
		Str("language", doc.Language).
		Int("pages", doc.PageCount).
		Int("chars", len(doc.Content)).
		Msg("ingest.Ingest: text extracted")
	return doc, nil
}

// withLanguage runs an OCR pass in the requested language. For "auto" it
// runs an English pass, detects the language of the result and re-runs in
// the detected language when that differs.
func (e *Extractor) withLanguage(ctx context.Context, lang string, ocr func(lang string) (*domain.DocumentText, error)) (*domain.DocumentText, error) {
	if lang == "" {
		lang = defaultLanguage
	}
	if lang != AutoLanguage {
		return ocr(lang)
	}

	first, err := ocr(defaultLanguage)
	if err != nil {
		return nil, err
	}
	detected, ok := e.detect(first.Content)
	if !ok || detected == defaultLanguage || !slices.Contains(e.languages, detected) {
		return first, nil
	}

	log.Debug().Str("language", detected).Msg("ingest.withLanguage: re-running OCR in detected language")
	return ocr(detected)
}

func (e *Extractor) detect(text string) (string, bool) {
	if e.detector == nil || strings.TrimSpace(text) == "" {
		return "", false
	}
	if len(text) > detectSampleSize {
		text = text[:detectSampleSize]
	}
	return e.detector.Detect(text)
}

func (e *Extractor) extractPDFText(ctx context.Context, path, lang string) (*domain.DocumentText, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 500))
	}
	text := string(out)
	// pdftotext separates pages with a form feed and ends the last page with one.
	pages := strings.Count(text, "\f")
	if pages == 0 || !strings.HasSuffix(strings.TrimRight(text, "\n"), "\f") {
		pages++
	}
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		text = strings.Join(strings.SplitN(text, "\f", e.cfg.MaxPages+1)[:e.cfg.MaxPages], "\f")
		pages = e.cfg.MaxPages
	}

	doc := &domain.DocumentText{Content: text, PageCount: pages, Method: MethodPDFText}
	if lang == AutoLanguage {
		if detected, ok := e.detect(text); ok {
			doc.Language = detected
		}
	}
	return doc, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path, tmpDir, lang string) (*domain.DocumentText, error) {
	prefix := filepath.Join(tmpDir, "page-"+lang)
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 500))
	}

	// pdftoppm writes prefix-1.png, prefix-2.png, ... zero-padded to the page count width.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}

	texts := make([]string, 0, len(matches))
	for _, img := range matches {
		txt, err := e.tesseract(ctx, img, lang)
		if err != nil {
			return nil, err
		}
		texts = append(texts, txt)
	}
	return &domain.DocumentText{
		Content:   strings.Join(texts, "\n\n"),
		PageCount: len(matches),
		Method:    MethodPDFOCR,
		Language:  lang,
	}, nil
}

func (e *Extractor) imageOCR(ctx context.Context, path, lang string) (*domain.DocumentText, error) {
	txt, err := e.tesseract(ctx, path, lang)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentText{
		Content:   txt,
		PageCount: 1,
		Method:    MethodImageOCR,
		Language:  lang,
	}, nil
}

func (e *Extractor) tesseract(ctx context.Context, path, lang string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 500))
	}
	return string(out), nil
}
