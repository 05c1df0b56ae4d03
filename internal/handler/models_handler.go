package handler

import (
	"github.com/gin-gonic/gin"

	"trialscope/internal/ingest"
	"trialscope/internal/service"
)

// ModelsHandler lists the provider and OCR choices offered to clients.
type ModelsHandler struct {
	credentials service.CredentialService
	languages   []string
}

// NewModelsHandler creates a new ModelsHandler.
func NewModelsHandler(credentials service.CredentialService, languages []string) *ModelsHandler {
	return &ModelsHandler{credentials: credentials, languages: languages}
}

type ocrLanguage struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// List handles GET /api/v1/models
func (h *ModelsHandler) List(c *gin.Context) {
	langs := make([]ocrLanguage, 0, len(h.languages)+1)
	langs = append(langs, ocrLanguage{Code: ingest.AutoLanguage, Name: "Auto-detect"})
	for _, code := range h.languages {
		name := ingest.LanguageNames[code]
		if name == "" {
			name = code
		}
		langs = append(langs, ocrLanguage{Code: code, Name: name})
	}

	RespondOK(c, gin.H{
		"providers":     h.credentials.Catalogs(),
		"ocr_languages": langs,
	})
}
