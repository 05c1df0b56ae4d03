package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trialscope/internal/config"
	"trialscope/internal/domain"
	"trialscope/internal/handler"
	"trialscope/internal/llm"
	"trialscope/internal/port"
	"trialscope/internal/router"
	"trialscope/internal/service"
	"trialscope/internal/session"
	"trialscope/internal/xlsxexport"
	"trialscope/mocks"
)

type stubLanguages struct{}

func (stubLanguages) ValidateLanguage(string) error { return nil }

type testServer struct {
	engine    *gin.Engine
	analysis  service.AnalysisService
	searcher  *mocks.MockLiteratureSearcher
	completer *mocks.MockCompleter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	completer := new(mocks.MockCompleter)
	llm.RegisterProvider("openai", func(*config.ProviderConfig) (port.Completer, error) {
		return completer, nil
	})

	llmCfg := config.LLMConfig{
		Provider: "openai",
		OpenAI:   config.ModelCatalog{DefaultModel: "gpt-4o", Models: []string{"gpt-4o", "gpt-4-turbo"}},
	}
	store := session.NewStore()
	issuer := session.NewTokenIssuer(config.SessionConfig{Secret: "router-test", Issuer: "trialscope", TokenExpiry: time.Hour})
	searcher := new(mocks.MockLiteratureSearcher)

	credentials := service.NewCredentialService(llmCfg)
	analysis := service.NewAnalysisService(searcher, nil, service.NewCompleterFactory(llmCfg), config.AnalysisConfig{Concurrency: 2})
	exports := service.NewExportService(nil, config.S3Config{})

	engine := router.Setup(issuer, store, []string{"http://localhost:3000"}, 0, router.Handlers{
		Session:  handler.NewSessionHandler(store, issuer, credentials, exports),
		Analysis: handler.NewAnalysisHandler(analysis, stubLanguages{}, config.UploadConfig{MaxFiles: 10}),
		Export:   handler.NewExportHandler(exports),
		Models:   handler.NewModelsHandler(credentials, []string{"eng", "fra"}),
		Health:   handler.NewHealthHandler(store),
	})
	return &testServer{engine: engine, analysis: analysis, searcher: searcher, completer: completer}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, http.NoBody)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := envelope(t, w)["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %s", w.Body.String())
	return e["code"].(string)
}

func TestRouter_PublicRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/models", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"default_model":"gpt-4o"`)
	assert.Contains(t, w.Body.String(), `"code":"auto"`)
	assert.Contains(t, w.Body.String(), `"name":"French"`)

	w = s.do(http.MethodGet, "/api/v1/session", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_SearchWorkflow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	token := envelope(t, w)["data"].(map[string]interface{})["token"].(string)

	// Batches are gated on a validated credential.
	w = s.do(http.MethodPost, "/api/v1/session/search", token, `{"query":"aspirin"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "CREDENTIAL_INVALID", errCode(t, w))

	s.completer.On("ListModels", mock.Anything).Return([]string{"gpt-4o"}, nil)
	w = s.do(http.MethodPut, "/api/v1/session/credential", token, `{"provider":"openai","api_key":"sk-test"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s.searcher.On("Search", mock.Anything, "aspirin", 2).Return([]domain.SearchRecord{
		{PMID: "100", Title: "First"},
		{PMID: "200", Title: "Second"},
	}, nil)
	s.completer.On("Complete", mock.Anything, mock.MatchedBy(func(req port.CompletionRequest) bool {
		return strings.Contains(req.UserContent, `"pmid": "100"`)
	})).Return(`{"Title": "First", "PMID": "100"}`, nil)
	s.completer.On("Complete", mock.Anything, mock.MatchedBy(func(req port.CompletionRequest) bool {
		return strings.Contains(req.UserContent, `"pmid": "200"`)
	})).Return(`{"Title": "Second", "PMID": "200"}`, nil)

	w = s.do(http.MethodPost, "/api/v1/session/search", token, `{"query":"aspirin","max_results":2}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	s.analysis.Wait()

	w = s.do(http.MethodGet, "/api/v1/session/results", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Less(t, strings.Index(body, `"PMID":"100"`), strings.Index(body, `"PMID":"200"`))

	w = s.do(http.MethodGet, "/api/v1/session", token, "")
	snap := envelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), snap["result_count"])
	assert.Equal(t, float64(1), snap["progress"])
	assert.Equal(t, true, snap["search_completed"])

	// Results exist, so a second search must choose a mode.
	w = s.do(http.MethodPost, "/api/v1/session/search", token, `{"query":"aspirin","max_results":2}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "MODE_REQUIRED", errCode(t, w))

	w = s.do(http.MethodGet, "/api/v1/session/export?rows=1", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxexport.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Selected_")

	w = s.do(http.MethodPost, "/api/v1/session/export/archive", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodPost, "/api/v1/session/clear", token, `{"confirm":false}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(http.MethodPost, "/api/v1/session/clear", token, `{"confirm":true}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/session/export", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/session", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/session", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
