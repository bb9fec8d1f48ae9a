// Package engine parses engine command flags and launches the game
// engine's MCP server.
package engine

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/storyloom/storyloom/internal/game/service"
	mcpserver "github.com/storyloom/storyloom/internal/mcp"
	"github.com/storyloom/storyloom/internal/narrator"
	"github.com/storyloom/storyloom/internal/narrator/gemini"
	"github.com/storyloom/storyloom/internal/narrator/openai"
	platformcmd "github.com/storyloom/storyloom/internal/platform/cmd"
	"github.com/storyloom/storyloom/internal/platform/config"
	"github.com/storyloom/storyloom/internal/storage"
	bboltstore "github.com/storyloom/storyloom/internal/storage/bbolt"
	"github.com/storyloom/storyloom/internal/storage/failover"
	"github.com/storyloom/storyloom/internal/storage/memory"
	sqlitestore "github.com/storyloom/storyloom/internal/storage/sqlite"
	"github.com/storyloom/storyloom/internal/template"
)

// Narrator provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds engine command configuration.
type Config struct {
	DBPath         string `env:"STORYLOOM_DB_PATH" envDefault:"storyloom.db"`
	FallbackDBPath string `env:"STORYLOOM_FALLBACK_DB_PATH" envDefault:"storyloom.bolt"`
	TemplatesDir   string `env:"STORYLOOM_TEMPLATES_DIR"`

	Provider    string `env:"STORYLOOM_NARRATOR_PROVIDER" envDefault:"openai"`
	OpenAIKey   string `env:"STORYLOOM_OPENAI_API_KEY"`
	OpenAIModel string `env:"STORYLOOM_OPENAI_MODEL"`
	GeminiKey   string `env:"STORYLOOM_GEMINI_API_KEY"`
	GeminiModel string `env:"STORYLOOM_GEMINI_MODEL"`
	MemoryStore bool   `env:"STORYLOOM_MEMORY_STORE" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config. A local .env
// file is honored when present.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		// Missing .env files are the normal case outside development.
		log.Printf("event=dotenv_skipped error=%q", err)
	}

	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the primary SQLite database")
	fs.StringVar(&cfg.FallbackDBPath, "fallback-db", cfg.FallbackDBPath, "Path to the fallback BoltDB database")
	fs.StringVar(&cfg.TemplatesDir, "templates", cfg.TemplatesDir, "Directory of scenario templates (defaults to embedded)")
	fs.StringVar(&cfg.Provider, "narrator", cfg.Provider, "Narrator provider: openai or gemini")
	fs.BoolVar(&cfg.MemoryStore, "memory", cfg.MemoryStore, "Use an in-memory store (state is lost on exit)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run wires storage, templates and the narrator, then serves MCP over
// stdio until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceEngine, func(ctx context.Context) error {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("event=store_close_failed error=%q", err)
			}
		}()

		templates := template.NewEmbeddedSource()
		if dir := strings.TrimSpace(cfg.TemplatesDir); dir != "" {
			templates = template.NewSource(os.DirFS(dir), ".")
		}

		storyteller, err := buildNarrator(ctx, cfg)
		if err != nil {
			return err
		}

		svc, err := service.New(service.Config{
			Store:     store,
			Templates: templates,
			Narrator:  storyteller,
		})
		if err != nil {
			return err
		}

		server, err := mcpserver.NewServer(svc)
		if err != nil {
			return err
		}
		log.Printf("event=engine_started db=%s narrator=%s", cfg.DBPath, cfg.Provider)
		return server.Run(ctx)
	})
}

func openStore(cfg Config) (storage.GameStore, error) {
	if cfg.MemoryStore {
		return memory.New(), nil
	}

	primary, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open primary store: %w", err)
	}
	fallback, err := bboltstore.Open(cfg.FallbackDBPath)
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("open fallback store: %w", err)
	}
	return failover.New(primary, fallback), nil
}

func buildNarrator(ctx context.Context, cfg Config) (narrator.Narrator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey: cfg.OpenAIKey,
			Model:  cfg.OpenAIModel,
		})
	case ProviderGemini:
		return gemini.New(ctx, cfg.GeminiKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown narrator provider %q", cfg.Provider)
	}
}
