package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	CORS     CORSConfig
	Session  SessionConfig
	LLM      LLMConfig
	PubMed   PubMedConfig
	OCR      OCRConfig
	Analysis AnalysisConfig
	Upload   UploadConfig
	S3       S3Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SessionConfig holds settings for interactive sessions and their tokens.
type SessionConfig struct {
	Secret        string        `mapstructure:"secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenExpiry   time.Duration `mapstructure:"token_expiry"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ModelCatalog lists the models offered for one completion provider.
type ModelCatalog struct {
	BaseURL      string   `mapstructure:"base_url"`
	DefaultModel string   `mapstructure:"default_model"`
	Models       []string `mapstructure:"models"`
}

// Has reports whether model is in the catalog.
func (m ModelCatalog) Has(model string) bool {
	for _, name := range m.Models {
		if name == model {
			return true
		}
	}
	return false
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	Provider    string       `mapstructure:"provider"`
	TimeoutSecs int          `mapstructure:"timeout_secs"`
	MaxTokens   int          `mapstructure:"max_tokens"`
	OpenAI      ModelCatalog `mapstructure:"openai"`
	Anthropic   ModelCatalog `mapstructure:"anthropic"`
}

// ProviderConfig holds everything needed to build one completion client.
type ProviderConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	TimeoutSecs int
	MaxTokens   int
}

// Catalog returns the model catalog for a provider name.
func (l *LLMConfig) Catalog(provider string) (ModelCatalog, bool) {
	switch provider {
	case "openai":
		return l.OpenAI, true
	case "anthropic":
		return l.Anthropic, true
	default:
		return ModelCatalog{}, false
	}
}

// ProviderConfig builds the client config for provider, falling back to the
// catalog default when model is empty.
func (l *LLMConfig) ProviderConfig(provider, apiKey, model string) *ProviderConfig {
	catalog, _ := l.Catalog(provider)
	if model == "" {
		model = catalog.DefaultModel
	}
	return &ProviderConfig{
		Provider:    provider,
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     catalog.BaseURL,
		TimeoutSecs: l.TimeoutSecs,
		MaxTokens:   l.MaxTokens,
	}
}

// PubMedConfig holds NCBI E-utilities settings. Email and APIKey are optional
// and only raise the rate limit.
type PubMedConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Email          string `mapstructure:"email"`
	APIKey         string `mapstructure:"api_key"`
	Tool           string `mapstructure:"tool"`
	Filter         string `mapstructure:"filter"`
	DefaultResults int    `mapstructure:"default_results"`
	MaxResults     int    `mapstructure:"max_results"`
	TimeoutSecs    int    `mapstructure:"timeout_secs"`
}

// OCRConfig holds text-extraction binaries and OCR settings.
type OCRConfig struct {
	Pdftotext   string   `mapstructure:"pdftotext"`
	Pdftoppm    string   `mapstructure:"pdftoppm"`
	Tesseract   string   `mapstructure:"tesseract"`
	DPI         int      `mapstructure:"dpi"`
	MaxPages    int      `mapstructure:"max_pages"`
	TessdataDir string   `mapstructure:"tessdata_dir"`
	Languages   []string `mapstructure:"languages"`
}

// AnalysisConfig holds batch orchestration settings.
type AnalysisConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

// UploadConfig bounds document batches submitted over HTTP.
type UploadConfig struct {
	MaxFileSizeMB int64 `mapstructure:"max_file_size_mb"`
	MaxFiles      int   `mapstructure:"max_files"`
}

// S3Config holds the export archive bucket settings. An empty bucket
// disables archiving.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Prefix        string `mapstructure:"prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// Enabled reports whether an archive bucket is configured.
func (s *S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Load reads configuration from environment variables with the TRIALSCOPE_
// prefix and, when path is non-empty, from a config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRIALSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Session defaults
	v.SetDefault("session.secret", "change-me-in-production")
	v.SetDefault("session.issuer", "trialscope")
	v.SetDefault("session.token_expiry", "12h")
	v.SetDefault("session.idle_ttl", "12h")
	v.SetDefault("session.sweep_interval", "10m")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.default_model", "gpt-4o")
	v.SetDefault("llm.openai.models", "gpt-4o,gpt-4-turbo,gpt-3.5-turbo")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("llm.anthropic.default_model", "claude-3-sonnet-20240229")
	v.SetDefault("llm.anthropic.models", "claude-3-opus-20240229,claude-3-sonnet-20240229,claude-3-haiku-20240307")

	// PubMed defaults
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.email", "")
	v.SetDefault("pubmed.api_key", "")
	v.SetDefault("pubmed.tool", "trialscope")
	v.SetDefault("pubmed.filter", "clinicaltrial[filter]")
	v.SetDefault("pubmed.default_results", 20)
	v.SetDefault("pubmed.max_results", 400)
	v.SetDefault("pubmed.timeout_secs", 60)

	// OCR defaults
	v.SetDefault("ocr.pdftotext", "pdftotext")
	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 0)
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.languages", "eng,fra,ara,spa")

	// Analysis defaults
	v.SetDefault("analysis.concurrency", 1)
	v.SetDefault("analysis.item_timeout", "5m")

	// Upload defaults
	v.SetDefault("upload.max_file_size_mb", 50)
	v.SetDefault("upload.max_files", 50)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "exports")
	v.SetDefault("s3.presign_expiry", 3600)

	envBindings := map[string][]string{
		"server.port":                  {"TRIALSCOPE_SERVER_PORT"},
		"server.read_timeout":          {"TRIALSCOPE_SERVER_READ_TIMEOUT"},
		"server.write_timeout":         {"TRIALSCOPE_SERVER_WRITE_TIMEOUT"},
		"server.shutdown_timeout":      {"TRIALSCOPE_SERVER_SHUTDOWN_TIMEOUT"},
		"server.environment":           {"TRIALSCOPE_SERVER_ENVIRONMENT"},
		"log.level":                    {"TRIALSCOPE_LOG_LEVEL"},
		"log.format":                   {"TRIALSCOPE_LOG_FORMAT"},
		"cors.allowed_origins":         {"TRIALSCOPE_CORS_ALLOWED_ORIGINS"},
		"session.secret":               {"TRIALSCOPE_SESSION_SECRET"},
		"session.issuer":               {"TRIALSCOPE_SESSION_ISSUER"},
		"session.token_expiry":         {"TRIALSCOPE_SESSION_TOKEN_EXPIRY"},
		"session.idle_ttl":             {"TRIALSCOPE_SESSION_IDLE_TTL"},
		"session.sweep_interval":       {"TRIALSCOPE_SESSION_SWEEP_INTERVAL"},
		"llm.provider":                 {"TRIALSCOPE_LLM_PROVIDER"},
		"llm.timeout_secs":             {"TRIALSCOPE_LLM_TIMEOUT_SECS"},
		"llm.max_tokens":               {"TRIALSCOPE_LLM_MAX_TOKENS"},
		"llm.openai.base_url":          {"TRIALSCOPE_LLM_OPENAI_BASE_URL"},
		"llm.openai.default_model":     {"TRIALSCOPE_LLM_OPENAI_DEFAULT_MODEL"},
		"llm.openai.models":            {"TRIALSCOPE_LLM_OPENAI_MODELS"},
		"llm.anthropic.base_url":       {"TRIALSCOPE_LLM_ANTHROPIC_BASE_URL"},
		"llm.anthropic.default_model":  {"TRIALSCOPE_LLM_ANTHROPIC_DEFAULT_MODEL"},
		"llm.anthropic.models":         {"TRIALSCOPE_LLM_ANTHROPIC_MODELS"},
		"pubmed.base_url":              {"TRIALSCOPE_PUBMED_BASE_URL"},
		"pubmed.email":                 {"TRIALSCOPE_PUBMED_EMAIL", "NCBI_EMAIL"},
		"pubmed.api_key":               {"TRIALSCOPE_PUBMED_API_KEY", "NCBI_API_KEY"},
		"pubmed.tool":                  {"TRIALSCOPE_PUBMED_TOOL"},
		"pubmed.filter":                {"TRIALSCOPE_PUBMED_FILTER"},
		"pubmed.default_results":       {"TRIALSCOPE_PUBMED_DEFAULT_RESULTS"},
		"pubmed.max_results":           {"TRIALSCOPE_PUBMED_MAX_RESULTS"},
		"pubmed.timeout_secs":          {"TRIALSCOPE_PUBMED_TIMEOUT_SECS"},
		"ocr.pdftotext":                {"TRIALSCOPE_OCR_PDFTOTEXT"},
		"ocr.pdftoppm":                 {"TRIALSCOPE_OCR_PDFTOPPM"},
		"ocr.tesseract":                {"TRIALSCOPE_OCR_TESSERACT"},
		"ocr.dpi":                      {"TRIALSCOPE_OCR_DPI"},
		"ocr.max_pages":                {"TRIALSCOPE_OCR_MAX_PAGES"},
		"ocr.tessdata_dir":             {"TRIALSCOPE_OCR_TESSDATA_DIR"},
		"ocr.languages":                {"TRIALSCOPE_OCR_LANGUAGES"},
		"analysis.concurrency":         {"TRIALSCOPE_ANALYSIS_CONCURRENCY"},
		"analysis.item_timeout":        {"TRIALSCOPE_ANALYSIS_ITEM_TIMEOUT"},
		"upload.max_file_size_mb":      {"TRIALSCOPE_UPLOAD_MAX_FILE_SIZE_MB"},
		"upload.max_files":             {"TRIALSCOPE_UPLOAD_MAX_FILES"},
		"s3.region":                    {"TRIALSCOPE_S3_REGION"},
		"s3.bucket":                    {"TRIALSCOPE_S3_BUCKET"},
		"s3.endpoint":                  {"TRIALSCOPE_S3_ENDPOINT"},
		"s3.access_key":                {"TRIALSCOPE_S3_ACCESS_KEY"},
		"s3.secret_key":                {"TRIALSCOPE_S3_SECRET_KEY"},
		"s3.prefix":                    {"TRIALSCOPE_S3_PREFIX"},
		"s3.presign_expiry":            {"TRIALSCOPE_S3_PRESIGN_EXPIRY"},
	}
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}

	// Hosting platforms set PORT. Use it if TRIALSCOPE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("TRIALSCOPE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:            serverPort,
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		Environment:     v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: listSetting(v, "cors.allowed_origins"),
	}
	cfg.Session = SessionConfig{
		Secret:        v.GetString("session.secret"),
		Issuer:        v.GetString("session.issuer"),
		TokenExpiry:   v.GetDuration("session.token_expiry"),
		IdleTTL:       v.GetDuration("session.idle_ttl"),
		SweepInterval: v.GetDuration("session.sweep_interval"),
	}
	cfg.LLM = LLMConfig{
		Provider:    v.GetString("llm.provider"),
		TimeoutSecs: v.GetInt("llm.timeout_secs"),
		MaxTokens:   v.GetInt("llm.max_tokens"),
		OpenAI: ModelCatalog{
			BaseURL:      v.GetString("llm.openai.base_url"),
			DefaultModel: v.GetString("llm.openai.default_model"),
			Models:       listSetting(v, "llm.openai.models"),
		},
		Anthropic: ModelCatalog{
			BaseURL:      v.GetString("llm.anthropic.base_url"),
			DefaultModel: v.GetString("llm.anthropic.default_model"),
			Models:       listSetting(v, "llm.anthropic.models"),
		},
	}
	cfg.PubMed = PubMedConfig{
		BaseURL:        v.GetString("pubmed.base_url"),
		Email:          v.GetString("pubmed.email"),
		APIKey:         v.GetString("pubmed.api_key"),
		Tool:           v.GetString("pubmed.tool"),
		Filter:         v.GetString("pubmed.filter"),
		DefaultResults: v.GetInt("pubmed.default_results"),
		MaxResults:     v.GetInt("pubmed.max_results"),
		TimeoutSecs:    v.GetInt("pubmed.timeout_secs"),
	}
	cfg.OCR = OCRConfig{
		Pdftotext:   v.GetString("ocr.pdftotext"),
		Pdftoppm:    v.GetString("ocr.pdftoppm"),
		Tesseract:   v.GetString("ocr.tesseract"),
		DPI:         v.GetInt("ocr.dpi"),
		MaxPages:    v.GetInt("ocr.max_pages"),
		TessdataDir: v.GetString("ocr.tessdata_dir"),
		Languages:   listSetting(v, "ocr.languages"),
	}
	cfg.Analysis = AnalysisConfig{
		Concurrency: v.GetInt("analysis.concurrency"),
		ItemTimeout: v.GetDuration("analysis.item_timeout"),
	}
	if cfg.Analysis.Concurrency < 1 {
		cfg.Analysis.Concurrency = 1
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
		MaxFiles:      v.GetInt("upload.max_files"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		Prefix:        v.GetString("s3.prefix"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}

	return cfg, nil
}

// listSetting reads a list that may be given as a YAML sequence or as a
// comma-separated string.
func listSetting(v *viper.Viper, key string) []string {
	if _, ok := v.Get(key).([]any); ok {
		return v.GetStringSlice(key)
	}
	return splitList(v.GetString(key))
}

// splitList parses a comma-separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
