package router

import (
	"github.com/gin-gonic/gin"

	"trialscope/internal/handler"
	"trialscope/internal/middleware"
	"trialscope/internal/session"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Session  *handler.SessionHandler
	Analysis *handler.AnalysisHandler
	Export   *handler.ExportHandler
	Models   *handler.ModelsHandler
	Health   *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	issuer *session.TokenIssuer,
	store *session.Store,
	allowedOrigins []string,
	maxUploadBytes int64,
	h Handlers,
) *gin.Engine {
	r := gin.New()
	if maxUploadBytes > 0 {
		r.MaxMultipartMemory = maxUploadBytes
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	v1 := r.Group("/api/v1")

	// Public routes
	v1.GET("/models", h.Models.List)
	v1.POST("/sessions", h.Session.Create)

	// Session routes - require a valid session token
	sess := v1.Group("/session")
	sess.Use(middleware.SessionAuth(issuer, store))

	sess.GET("", h.Session.Get)
	sess.DELETE("", h.Session.Delete)
	sess.PUT("/credential", h.Session.SetCredential)
	sess.GET("/results", h.Session.Results)
	sess.POST("/clear", h.Session.Clear)

	sess.POST("/search", h.Analysis.Search)
	sess.POST("/documents", h.Analysis.Documents)

	sess.GET("/export", h.Export.Export)
	sess.POST("/export/archive", h.Export.Archive)
	sess.GET("/texts", h.Session.Texts)
	sess.GET("/texts/:index", h.Export.Text)

	return r
}
