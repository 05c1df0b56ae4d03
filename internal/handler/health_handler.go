package handler

import (
	"net/http"
	"os/exec"

	"github.com/gin-gonic/gin"

	"trialscope/internal/session"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store    *session.Store
	binaries []string
	lookPath func(string) (string, error)
}

// NewHealthHandler creates a new HealthHandler. Readiness requires every
// named binary to be on PATH.
func NewHealthHandler(store *session.Store, binaries ...string) *HealthHandler {
	return &HealthHandler{store: store, binaries: binaries, lookPath: exec.LookPath}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	var missing []string
	for _, bin := range h.binaries {
		if _, err := h.lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "missing_binaries": missing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.store.Len()})
}
