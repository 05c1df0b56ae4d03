package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"trialscope/internal/domain"
	"trialscope/internal/service"
)

// ExportHandler serves spreadsheet and text downloads.
type ExportHandler struct {
	exports service.ExportService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exports service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

type archiveRequest struct {
	Rows []int `json:"rows"`
}

// Export handles GET /api/v1/session/export
// @Summary Download results
// @Description Downloads all results, or the rows listed in ?rows=0,2, as xlsx (default) or csv
// @Tags export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param rows query string false "Comma-separated 0-based row indices"
// @Param format query string false "xlsx or csv"
// @Success 200 {file} file
// @Failure 400 {object} APIResponse "Invalid selection"
// @Failure 404 {object} APIResponse "No results"
// @Security BearerAuth
// @Router /session/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}

	rows, err := parseRows(c.Query("rows"))
	if err != nil {
		HandleError(c, err)
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be xlsx or csv")
		return
	}

	file, err := h.exports.Export(st, rows, format)
	if err != nil {
		HandleError(c, err)
		return
	}
	sendFile(c, file)
}

// Archive handles POST /api/v1/session/export/archive
// @Summary Archive results to object storage
// @Description Uploads the xlsx export and returns a presigned download URL
// @Tags export
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=service.ArchiveResult}
// @Failure 503 {object} APIResponse "Archive not configured"
// @Security BearerAuth
// @Router /session/export/archive [post]
func (h *ExportHandler) Archive(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}

	var req archiveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	result, err := h.exports.Archive(c.Request.Context(), st, req.Rows)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// Text handles GET /api/v1/session/texts/:index
func (h *ExportHandler) Text(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INDEX", "index must be an integer")
		return
	}

	file, err := h.exports.Text(st, index)
	if err != nil {
		HandleError(c, err)
		return
	}
	sendFile(c, file)
}

func sendFile(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// parseRows parses a comma-separated list of 0-based row indices.
func parseRows(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	rows := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a row index", domain.ErrInvalidSelection, p)
		}
		rows = append(rows, n)
	}
	return rows, nil
}
