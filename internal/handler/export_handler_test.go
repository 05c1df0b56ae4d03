package handler_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"trialscope/internal/domain"
	"trialscope/internal/handler"
	"trialscope/internal/service"
	"trialscope/internal/session"
	"trialscope/internal/xlsxexport"
	"trialscope/mocks"
)

func TestExportHandler_Export_AllRows(t *testing.T) {
	exports := new(mocks.MockExportService)
	h := handler.NewExportHandler(exports)
	st := session.NewState("s")

	exports.On("Export", st, []int(nil), service.FormatXLSX).Return(&service.ExportFile{
		Filename:    "PubMed_aspirin_240101.xlsx",
		ContentType: xlsxexport.ContentType,
		Data:        []byte("PK"),
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/session/export", http.NoBody, st)
	h.Export(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxexport.ContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="PubMed_aspirin_240101.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK", w.Body.String())
}

func TestExportHandler_Export_SelectedRowsCSV(t *testing.T) {
	exports := new(mocks.MockExportService)
	h := handler.NewExportHandler(exports)
	st := session.NewState("s")

	exports.On("Export", st, []int{0, 2}, service.FormatCSV).Return(&service.ExportFile{
		Filename: "Selected_240101.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("a,b"),
	}, nil)

	c, w := newContext(http.MethodGet, "/api/v1/session/export?rows=0,%202&format=csv", http.NoBody, st)
	h.Export(c)

	assert.Equal(t, http.StatusOK, w.Code)
	exports.AssertExpectations(t)
}

func TestExportHandler_Export_BadRows(t *testing.T) {
	exports := new(mocks.MockExportService)
	h := handler.NewExportHandler(exports)

	c, w := newContext(http.MethodGet, "/api/v1/session/export?rows=1,x", http.NoBody, session.NewState("s"))
	h.Export(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SELECTION", errorCode(t, w))
	exports.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything)
}

func TestExportHandler_Export_NoResults(t *testing.T) {
	exports := new(mocks.MockExportService)
	h := handler.NewExportHandler(exports)
	st := session.NewState("s")

	exports.On("Export", st, mock.Anything, mock.Anything).Return(nil, domain.ErrNoResults)

	c, w := newContext(http.MethodGet, "/api/v1/session/export", http.NoBody, st)
	h.Export(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_RESULTS", errorCode(t, w))
}

func TestExportHandler_Archive(t *testing.T) {
	exports := new(mocks.MockExportService)
	h := handler.NewExportHandler(exports)
	st := session.NewState("s")

	exports.On("Archive", mock.Anything, st, []int{1}).Return(&service.ArchiveResult{
		Key: "k", Filename: "Selected_240101.xlsx", URL: "https://example.com/x", ExpiresAt: time.Now(),
	}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/session/export/archive", strings.NewReader(`{"rows":[1]}`), st)
	c.Request.Header.Set("Content-Type", "application/json")
	h.Archive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "https://example.com/x", data["url"])
}

func TestExportHandler_Archive_Disabled(t *testing.T) {
	exports := new(mocks.MockExportService)
	h := handler.NewExportHandler(exports)
	st := session.NewState("s")

	exports.On("Archive", mock.Anything, st, []int(nil)).Return(nil, domain.ErrArchiveDisabled)

	c, w := newContext(http.MethodPost, "/api/v1/session/export/archive", http.NoBody, st)
	h.Archive(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "ARCHIVE_DISABLED", errorCode(t, w))
}

func TestExportHandler_Text(t *testing.T) {
	exports := new(mocks.MockExportService)
	h := handler.NewExportHandler(exports)
	st := session.NewState("s")

	exports.On("Text", st, 0).Return(&service.ExportFile{
		Filename: "trial.pdf.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("full text"),
	}, nil)
	exports.On("Text", st, 5).Return(nil, domain.ErrTextNotFound)

	c, w := newContext(http.MethodGet, "/api/v1/session/texts/0", http.NoBody, st)
	c.Params = gin.Params{{Key: "index", Value: "0"}}
	h.Text(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "full text", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "trial.pdf.txt")

	c, w = newContext(http.MethodGet, "/api/v1/session/texts/5", http.NoBody, st)
	c.Params = gin.Params{{Key: "index", Value: "5"}}
	h.Text(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newContext(http.MethodGet, "/api/v1/session/texts/x", http.NoBody, st)
	c.Params = gin.Params{{Key: "index", Value: "x"}}
	h.Text(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
