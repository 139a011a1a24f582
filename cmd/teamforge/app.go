package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/jonathan/teamforge/internal/config"
	"github.com/jonathan/teamforge/internal/db"
	"github.com/jonathan/teamforge/internal/llm"
	"github.com/jonathan/teamforge/internal/logging"
	"github.com/jonathan/teamforge/internal/observability"
	"github.com/jonathan/teamforge/internal/vector"
)

// app is the state shared by every command once configuration is loaded.
type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
	logger     *slog.Logger
}

// Replaced in tests.
var (
	newLLMClient = func(ctx context.Context, cfg *config.Config) (llm.Client, error) {
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key is required (set GEMINI_API_KEY or TEAMFORGE_LLM_API_KEY)")
		}
		return llm.NewClient(ctx, cfg.LLMClientConfig(), cfg.LLM.APIKey)
	}
	connectDB = db.Connect
)

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "teamforge",
		Short:         "AI team formation and project planning",
		Long:          "teamforge matches developers to projects using skill embeddings and timezone fit, and turns project descriptions into sprint roadmaps.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Print stage progress and a summary to stderr")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newFormTeamCmd(a),
		newPlanCmd(a),
		newScheduleCmd(a),
		newIndexProfileCmd(a),
		newTokenCmd(a),
	)
	return root
}

// openDB connects to the configured database.
func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	if a.cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required (set DATABASE_URL or TEAMFORGE_DATABASE_URL)")
	}
	database, err := connectDB(ctx, a.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if a.cfg.Database.Migrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
	}
	return database, nil
}

// vectorStore builds the configured profile index. The postgres backend embeds
// with Gemini; the memory backend uses keyword hashing and needs no API key.
func (a *app) vectorStore(ctx context.Context, database *db.DB) (vector.Store, func(), error) {
	if a.cfg.Vector.Backend != config.VectorPostgres {
		return vector.NewMemoryStore(nil), func() {}, nil
	}
	if database == nil {
		return nil, nil, fmt.Errorf("vector.backend %q requires a database", config.VectorPostgres)
	}
	if a.cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("vector.backend %q requires llm.api_key for embeddings", config.VectorPostgres)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(a.cfg.LLM.APIKey))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	embedder := vector.NewGeminiEmbedder(client, a.cfg.Vector.EmbeddingModel)
	return vector.NewPGStore(database.Pool(), embedder), func() { _ = client.Close() }, nil
}

// readJSON decodes the file at path ("-" for stdin) into v.
func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeJSON prints v as indented JSON on the command's output.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printer returns the verbose-mode printer, or nil when not verbose.
func (a *app) printer(cmd *cobra.Command) *observability.Printer {
	if !a.verbose {
		return nil
	}
	return observability.NewPrinter(cmd.ErrOrStderr())
}

// runContext bounds a pipeline run by the configured agent timeout.
func (a *app) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Agents.Timeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Agents.Timeout)
	}
	return context.WithCancel(ctx)
}
