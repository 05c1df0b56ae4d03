package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"trialscope/internal/domain"
	"trialscope/internal/service"
	"trialscope/internal/session"
)

// SessionHandler handles session lifecycle and state endpoints.
type SessionHandler struct {
	store       *session.Store
	issuer      *session.TokenIssuer
	credentials service.CredentialService
	exports     service.ExportService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	store *session.Store,
	issuer *session.TokenIssuer,
	credentials service.CredentialService,
	exports service.ExportService,
) *SessionHandler {
	return &SessionHandler{store: store, issuer: issuer, credentials: credentials, exports: exports}
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type credentialResponse struct {
	Provider domain.Provider `json:"provider"`
	Model    string          `json:"model"`
	Valid    bool            `json:"valid"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

// Create handles POST /api/v1/sessions
// @Summary Start a session
// @Description Creates an empty analysis session and returns its bearer token
// @Tags sessions
// @Produce json
// @Success 201 {object} APIResponse{data=createSessionResponse}
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	st := h.store.Create()
	token, expiresAt, err := h.issuer.Issue(st.ID())
	if err != nil {
		_ = h.store.Delete(st.ID())
		HandleError(c, err)
		return
	}

	log.Info().Str("session_id", st.ID()).Msg("sessionHandler.Create: session started")
	RespondCreated(c, createSessionResponse{SessionID: st.ID(), Token: token, ExpiresAt: expiresAt})
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}
	RespondOK(c, st.Snapshot())
}

// Delete handles DELETE /api/v1/session
// @Summary End the session
// @Description Drops all session state and deletes any archived exports
// @Tags sessions
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse "A batch is still running"
// @Security BearerAuth
// @Router /session [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := st.TryEnd(); err != nil {
		HandleError(c, err)
		return
	}
	if err := h.store.Delete(st.ID()); err != nil {
		HandleError(c, err)
		return
	}
	h.exports.Purge(c.Request.Context(), st.ID())

	log.Info().Str("session_id", st.ID()).Msg("sessionHandler.Delete: session ended")
	RespondOK(c, gin.H{"message": "session ended"})
}

// SetCredential handles PUT /api/v1/session/credential
// @Summary Choose provider and API key
// @Description Validates the key by listing the provider's models
// @Tags sessions
// @Accept json
// @Produce json
// @Param body body service.CredentialInput true "Provider, API key and model"
// @Success 200 {object} APIResponse{data=credentialResponse}
// @Failure 401 {object} APIResponse "Key rejected"
// @Security BearerAuth
// @Router /session/credential [put]
func (h *SessionHandler) SetCredential(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}

	var req service.CredentialInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	settings, err := h.credentials.Validate(c.Request.Context(), st, req)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, credentialResponse{Provider: settings.Provider, Model: settings.Model, Valid: true})
}

// Results handles GET /api/v1/session/results
func (h *SessionHandler) Results(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}
	RespondOK(c, gin.H{"results": st.Results(), "progress": st.Progress(), "running": st.Running()})
}

// Texts handles GET /api/v1/session/texts
func (h *SessionHandler) Texts(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}
	RespondOK(c, st.Texts())
}

// Clear handles POST /api/v1/session/clear
// @Summary Clear results
// @Description Without confirm=true only raises the pending confirmation flag
// @Tags sessions
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse "Confirmation required or batch running"
// @Security BearerAuth
// @Router /session/clear [post]
func (h *SessionHandler) Clear(c *gin.Context) {
	st, ok := sessionFromContext(c)
	if !ok {
		return
	}

	var req clearRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	if err := st.RequestClear(req.Confirm); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, st.Snapshot())
}
