// Package app wires configuration into the services, handlers and HTTP
// server shared by the trialscope binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"trialscope/internal/config"
	"trialscope/internal/handler"
	"trialscope/internal/ingest"
	"trialscope/internal/port"
	"trialscope/internal/pubmed"
	"trialscope/internal/router"
	"trialscope/internal/service"
	"trialscope/internal/session"
	s3storage "trialscope/internal/storage/s3"

	// Completion providers register themselves with the llm factory.
	_ "trialscope/internal/llm/claude"
	_ "trialscope/internal/llm/openai"
)

// App holds the wired components of one trialscope process.
type App struct {
	Config      *config.Config
	Store       *session.Store
	Issuer      *session.TokenIssuer
	Ingestor    *ingest.Extractor
	Searcher    *pubmed.Client
	Analysis    service.AnalysisService
	Credentials service.CredentialService
	Exports     service.ExportService
}

// New builds every component from cfg. The S3 archive client is created only
// when a bucket is configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var storage port.ObjectStorage
	if cfg.S3.Enabled() {
		client, err := s3storage.NewS3Client(ctx, &cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		storage = client
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("app.New: export archive enabled")
	}

	ingestor := ingest.NewExtractor(cfg.OCR)
	searcher := pubmed.NewClient(cfg.PubMed)

	return &App{
		Config:      cfg,
		Store:       session.NewStore(),
		Issuer:      session.NewTokenIssuer(cfg.Session),
		Ingestor:    ingestor,
		Searcher:    searcher,
		Analysis:    service.NewAnalysisService(searcher, ingestor, service.NewCompleterFactory(cfg.LLM), cfg.Analysis),
		Credentials: service.NewCredentialService(cfg.LLM),
		Exports:     service.NewExportService(storage, cfg.S3),
	}, nil
}

// Handler builds the Gin engine serving the HTTP API.
func (a *App) Handler() *gin.Engine {
	if a.Config.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	return router.Setup(a.Issuer, a.Store, a.Config.CORS.AllowedOrigins, a.Config.Upload.MaxFileSizeMB*1024*1024, router.Handlers{
		Session:  handler.NewSessionHandler(a.Store, a.Issuer, a.Credentials, a.Exports),
		Analysis: handler.NewAnalysisHandler(a.Analysis, a.Ingestor, a.Config.Upload),
		Export:   handler.NewExportHandler(a.Exports),
		Models:   handler.NewModelsHandler(a.Credentials, a.Ingestor.Languages()),
		Health:   handler.NewHealthHandler(a.Store, a.Config.OCR.Pdftotext, a.Config.OCR.Tesseract),
	})
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully and waits for running batches.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.Config.Server.Port,
		Handler:      a.Handler(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweepLoop(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("environment", a.Config.Server.Environment).Msg("app.Serve: server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("app.Serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("app.Serve: error during server shutdown")
	}

	done := make(chan struct{})
	go func() {
		a.Analysis.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("app.Serve: running batches finished")
	case <-shutdownCtx.Done():
		log.Warn().Msg("app.Serve: shutdown timeout reached with batches still running")
	}
	return nil
}

// sweepLoop ends idle sessions and deletes their archived exports.
func (a *App) sweepLoop(ctx context.Context) {
	interval := a.Config.Session.SweepInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range a.Store.Sweep(a.Config.Session.IdleTTL) {
				a.Exports.Purge(ctx, id)
			}
		}
	}
}
