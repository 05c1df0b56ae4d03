package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"trialscope/internal/handler"
	"trialscope/internal/middleware"
	"trialscope/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newContext builds a test context with st attached the way SessionAuth does.
func newContext(method, target string, body io.Reader, st *session.State) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, target, body)
	if st != nil {
		c.Set(middleware.ContextKeySession, st)
		c.Set(middleware.ContextKeySessionID, st.ID())
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}
