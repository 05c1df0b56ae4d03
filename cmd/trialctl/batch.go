package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trialscope/internal/app"
	"trialscope/internal/domain"
	"trialscope/internal/service"
	"trialscope/internal/session"
)

// addProviderFlags registers the completion provider flags shared by the
// batch commands.
func addProviderFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "completion provider: openai or anthropic (default from config)")
	cmd.Flags().String("model", "", "model name (default: provider's default model)")
	cmd.Flags().String("api-key", "", "provider API key (default: $OPENAI_API_KEY or $ANTHROPIC_API_KEY)")
	cmd.Flags().StringP("out", "o", "", "output file (default: generated name in the current directory)")
	cmd.Flags().String("format", "xlsx", "output format: xlsx or csv")
	cmd.Flags().Int("concurrency", 0, "items processed in parallel (default from config)")
}

// apiKeyFor picks the key from the flag or the provider's usual env var.
func apiKeyFor(provider domain.Provider, flag string) string {
	if flag != "" {
		return flag
	}
	switch provider {
	case domain.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// openSession wires the app and returns a session with a validated credential.
func openSession(ctx context.Context, cmd *cobra.Command) (*app.App, *session.State, error) {
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Analysis.Concurrency = n
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	name, _ := cmd.Flags().GetString("provider")
	if name == "" {
		name = cfg.LLM.Provider
	}
	provider, err := domain.ParseProvider(name)
	if err != nil {
		return nil, nil, err
	}
	model, _ := cmd.Flags().GetString("model")
	keyFlag, _ := cmd.Flags().GetString("api-key")

	st := a.Store.Create()
	settings, err := a.Credentials.Validate(ctx, st, service.CredentialInput{
		Provider: string(provider),
		APIKey:   apiKeyFor(provider, keyFlag),
		Model:    model,
	})
	if err != nil {
		return nil, nil, err
	}
	fmt.Fprintf(os.Stderr, "Using %s model %s\n", settings.Provider, settings.Model)
	return a, st, nil
}

// progressPrinter renders a one-line progress counter on stderr.
func progressPrinter(label string) service.ProgressFunc {
	return func(processed, total int) {
		fmt.Fprintf(os.Stderr, "\r%s %d/%d", label, processed, total)
		if processed == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// writeResults exports every record of st and prints a batch summary.
func writeResults(cmd *cobra.Command, a *app.App, st *session.State, result *service.BatchResult, elapsed time.Duration) error {
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  failed: %s\n", e.Error())
	}
	fmt.Fprintf(os.Stderr, "%d of %d items extracted in %s\n", result.Succeeded, result.Total, elapsed.Round(time.Millisecond))

	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := service.ParseExportFormat(formatFlag)
	if err != nil {
		return err
	}
	file, err := a.Exports.Export(st, nil, format)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = file.Filename
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, file.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(st.Results()), out)
	return nil
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search PubMed for clinical trials and extract trial data",
	Long: `search runs the query against PubMed restricted to clinical trials, sends
each hit's bibliographic record to the model and writes the extracted
attributes to a spreadsheet. Items that fail are reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, st, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}

		maxResults, _ := cmd.Flags().GetInt("max")
		start := time.Now()
		result, err := a.Analysis.RunSearchBatch(ctx, st, service.SearchBatchInput{
			Query:      strings.Join(args, " "),
			MaxResults: maxResults,
			OnProgress: progressPrinter("Analyzing articles"),
		})
		if err != nil {
			return err
		}
		return writeResults(cmd, a, st, result, time.Since(start))
	},
}

var filesCmd = &cobra.Command{
	Use:   "files <path>...",
	Short: "Extract trial data from PDF or image files",
	Long: `files reads each PDF, PNG or JPEG file, extracts its text (optionally with
OCR), sends the full text to the model and writes the extracted attributes to
a spreadsheet with one row per file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		uploads := make([]domain.Upload, 0, len(args))
		for _, p := range args {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			uploads = append(uploads, domain.Upload{Filename: filepath.Base(p), Data: data})
		}

		a, st, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}

		useOCR, _ := cmd.Flags().GetBool("ocr")
		language, _ := cmd.Flags().GetString("language")
		if err := a.Ingestor.ValidateLanguage(language); err != nil {
			return fmt.Errorf("%w: %q (available: auto, %s)", err, language, strings.Join(a.Ingestor.Languages(), ", "))
		}

		start := time.Now()
		result, err := a.Analysis.RunDocumentBatch(ctx, st, service.DocumentBatchInput{
			Uploads:    uploads,
			UseOCR:     useOCR,
			Language:   language,
			OnProgress: progressPrinter("Analyzing files"),
		})
		if err != nil {
			return err
		}
		if err := writeResults(cmd, a, st, result, time.Since(start)); err != nil {
			return err
		}

		textsDir, _ := cmd.Flags().GetString("texts-dir")
		if textsDir == "" {
			return nil
		}
		return writeTexts(a, st, textsDir)
	},
}

// writeTexts saves each document's extracted text as <filename>.txt.
func writeTexts(a *app.App, st *session.State, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for i := range st.Texts() {
		file, err := a.Exports.Text(st, i)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, file.Filename)
		if err := os.WriteFile(path, file.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	fmt.Fprintf(os.Stderr, "Wrote %d extracted texts to %s\n", len(st.Texts()), dir)
	return nil
}

func init() {
	addProviderFlags(searchCmd)
	searchCmd.Flags().Int("max", 0, "maximum number of PubMed results, 1-400 (default from config)")

	addProviderFlags(filesCmd)
	filesCmd.Flags().Bool("ocr", false, "run OCR on PDFs instead of reading their text layer")
	filesCmd.Flags().String("language", "", "OCR language code, or auto to detect")
	filesCmd.Flags().String("texts-dir", "", "also save each file's extracted text in this directory")

	rootCmd.AddCommand(searchCmd, filesCmd)
}
