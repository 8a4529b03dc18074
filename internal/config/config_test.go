package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.LLMMode != "auto" || cfg.LLMModel != "gemini-2.5-flash" {
		t.Fatalf("llm defaults = %q %q", cfg.LLMMode, cfg.LLMModel)
	}
	if cfg.HistoryWindowTurns != 20 || cfg.DigestTopMemories != 5 || cfg.DigestTopPreferences != 3 {
		t.Fatalf("context defaults = %d %d %d", cfg.HistoryWindowTurns, cfg.DigestTopMemories, cfg.DigestTopPreferences)
	}
	if cfg.Persona != DefaultPersona || cfg.GreetingFallback != DefaultGreetingFallback {
		t.Fatalf("persona defaults not applied")
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin must default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("HISTORY_WINDOW_TURNS", "4")
	t.Setenv("MEMOS_TIMEOUT", "750ms")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")
	t.Setenv("MAX_PROMPT_CHARS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.HistoryWindowTurns != 4 {
		t.Fatalf("HistoryWindowTurns = %d", cfg.HistoryWindowTurns)
	}
	if cfg.MemosTimeout != 750*time.Millisecond {
		t.Fatalf("MemosTimeout = %v", cfg.MemosTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin override not applied")
	}
	if cfg.MaxPromptChars != 0 {
		t.Fatalf("MaxPromptChars = %d, want 0 (budget disabled)", cfg.MaxPromptChars)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"HISTORY_WINDOW_TURNS":  "0",
		"DIGEST_TOP_MEMORIES":   "-1",
		"WRITEBACK_QUEUE_SIZE":  "0",
		"WRITEBACK_MAX_RETRIES": "-2",
		"MEMOS_TIMEOUT":         "soon",
		"APP_ALLOW_ANY_ORIGIN":  "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %s=%q", key, value)
			}
		})
	}
}
