package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/service"
)

// LanguageValidator checks OCR language choices.
type LanguageValidator interface {
	ValidateLanguage(lang string) error
}

// AnalysisHandler starts search and document batches.
type AnalysisHandler struct {
	analysis  service.AnalysisService
	languages LanguageValidator
	upload    config.UploadConfig
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysis service.AnalysisService, languages LanguageValidator, upload config.UploadConfig) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, languages: languages, upload: upload}
}

type searchRequest struct {
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results" binding:"omitempty,min=1,max=400"`
	Mode       string `json:"mode"`
}

type batchStartedResponse struct {
	Source domain.SourceKind `json:"source"`
	Items  int               `json:"items,omitempty"`
	Query  string            `json:"query,omitempty"`
}

// Search handles POST /api/v1/session/search
// @Summary Search PubMed and extract trial data
// @Description Starts a background batch over the clinical-trial hits for the query
// @Tags analysis
// @Accept json
// @Produce json
// @Success 202 {object} APIResponse{data=batchStartedResponse}
// @Failure 401 {object} APIResponse "No valid credential"
// @Failure 409 {object} APIResponse "Mode required or batch running"
// @Security BearerAuth
// @Router /session/search [post]
func (h *AnalysisHandler) Search(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	mode, err := domain.ParseBatchMode(req.Mode)
	if err != nil {
		HandleError(c, err)
		return
	}

	err = h.analysis.StartSearchBatch(st, service.SearchBatchInput{
		Query:      req.Query,
		MaxResults: req.MaxResults,
		Mode:       mode,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, batchStartedResponse{Source: domain.SourceSearch, Query: req.Query})
}

// Documents handles POST /api/v1/session/documents
// @Summary Analyze uploaded documents
// @Description Upload PDF or image files (multipart field "files"); OCR is optional
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files to analyze (PDF, JPG, or PNG)"
// @Param ocr formData bool false "Run OCR on PDFs"
// @Param language formData string false "OCR language code or auto"
// @Param mode formData string false "new or append"
// @Success 202 {object} APIResponse{data=batchStartedResponse}
// @Failure 400 {object} APIResponse "Missing files or unsupported language"
// @Failure 413 {object} APIResponse "File too large"
// @Security BearerAuth
// @Router /session/documents [post]
func (h *AnalysisHandler) Documents(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILES", "multipart form with files is required")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		HandleError(c, domain.ErrNoFiles)
		return
	}
	if h.upload.MaxFiles > 0 && len(headers) > h.upload.MaxFiles {
		HandleError(c, domain.ErrTooManyFiles)
		return
	}

	mode, err := domain.ParseBatchMode(c.PostForm("mode"))
	if err != nil {
		HandleError(c, err)
		return
	}
	useOCR := false
	if v := c.PostForm("ocr"); v != "" {
		useOCR, err = strconv.ParseBool(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "ocr must be true or false")
			return
		}
	}
	language := c.PostForm("language")
	if err := h.languages.ValidateLanguage(language); err != nil {
		HandleError(c, err)
		return
	}

	uploads := make([]domain.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := h.readUpload(fh)
		if err != nil {
			HandleError(c, err)
			return
		}
		uploads = append(uploads, u)
	}

	err = h.analysis.StartDocumentBatch(st, service.DocumentBatchInput{
		Uploads:  uploads,
		UseOCR:   useOCR,
		Language: language,
		Mode:     mode,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, batchStartedResponse{Source: domain.SourceDocument, Items: len(uploads)})
}

func (h *AnalysisHandler) readUpload(fh *multipart.FileHeader) (domain.Upload, error) {
	maxBytes := h.upload.MaxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && fh.Size > maxBytes {
		return domain.Upload{}, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, fh.Filename)
	}

	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
	}
	return domain.Upload{Filename: fh.Filename, Data: data}, nil
}
