package engine

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "storyloom.db" {
		t.Fatalf("expected default db path storyloom.db, got %q", cfg.DBPath)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("expected default provider openai, got %q", cfg.Provider)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("STORYLOOM_NARRATOR_PROVIDER", "gemini")

	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "custom.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Provider != ProviderGemini {
		t.Fatalf("expected provider from env, got %q", cfg.Provider)
	}
	if cfg.DBPath != "custom.db" {
		t.Fatalf("expected db flag override, got %q", cfg.DBPath)
	}
}

func TestBuildNarratorUnknownProvider(t *testing.T) {
	if _, err := buildNarrator(t.Context(), Config{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
