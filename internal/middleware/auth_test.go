package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialscope/internal/config"
	"trialscope/internal/middleware"
	"trialscope/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T) (*gin.Engine, *session.TokenIssuer, *session.Store) {
	t.Helper()
	issuer := session.NewTokenIssuer(config.SessionConfig{Secret: "test-secret", Issuer: "trialscope-test", TokenExpiry: time.Hour})
	store := session.NewStore()

	r := gin.New()
	r.Use(middleware.SessionAuth(issuer, store))
	r.GET("/test", func(c *gin.Context) {
		st, err := middleware.GetSession(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": st.ID(), "ctx_id": c.GetString(middleware.ContextKeySessionID)})
	})
	return r, issuer, store
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error.Code
}

func TestSessionAuth_ValidToken(t *testing.T) {
	r, issuer, store := newAuthRouter(t)
	st := store.Create()
	token, _, err := issuer.Issue(st.ID())
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, st.ID(), resp["session_id"])
	assert.Equal(t, st.ID(), resp["ctx_id"])
}

func TestSessionAuth_MissingHeader(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := doGet(r, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestSessionAuth_NotBearer(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := doGet(r, "Basic dXNlcjpwYXNz")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuth_InvalidToken(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := doGet(r, "Bearer not-a-jwt")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestSessionAuth_EndedSession(t *testing.T) {
	r, issuer, store := newAuthRouter(t)
	st := store.Create()
	token, _, err := issuer.Issue(st.ID())
	require.NoError(t, err)
	require.NoError(t, store.Delete(st.ID()))

	w := doGet(r, "Bearer "+token)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, w))
}

func TestGetSession_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, err := middleware.GetSession(c)

	assert.Error(t, err)
}
