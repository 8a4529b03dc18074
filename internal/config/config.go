package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPersona is the assistant character used when PERSONA is unset.
const DefaultPersona = "You are Sir Isaac Newton. Speak with a rigorous, classical, and slightly haughty manner. " +
	"Use what you remember about the user naturally in conversation; never reveal that you are reading from a database. " +
	"Write mathematics in LaTeX: $$ ... $$ for display formulas, $...$ inline."

// DefaultGreetingFallback is returned when greeting generation fails.
const DefaultGreetingFallback = "Welcome back to the halls of natural philosophy."

// Config contains all runtime settings for the conversation service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string

	LLMMode      string
	LLMModel     string
	GeminiAPIKey string

	MemosBaseURL string
	MemosAPIKey  string
	MemosTimeout time.Duration

	HistoryWindowTurns int
	HistoryReadTimeout time.Duration

	DigestTopMemories    int
	DigestTopPreferences int
	DigestMaxFieldChars  int
	MaxPromptChars       int

	Persona          string
	GreetingFallback string

	WritebackQueueSize  int
	WritebackWorkers    int
	WritebackMaxRetries int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "principia"),
		AllowAnyOrigin:       false,
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		LLMMode:              envOrDefault("LLM_MODE", "auto"),
		LLMModel:             envOrDefault("LLM_MODEL", "gemini-2.5-flash"),
		GeminiAPIKey:         stringsTrimSpace("GEMINI_API_KEY"),
		MemosBaseURL:         stringsTrimSpace("MEMOS_BASE_URL"),
		MemosAPIKey:          stringsTrimSpace("MEMOS_API_KEY"),
		Persona:              envOrDefault("PERSONA", DefaultPersona),
		GreetingFallback:     envOrDefault("GREETING_FALLBACK", DefaultGreetingFallback),
		ShutdownTimeout:      15 * time.Second,
		MemosTimeout:         5 * time.Second,
		HistoryWindowTurns:   20,
		HistoryReadTimeout:   2 * time.Second,
		DigestTopMemories:    5,
		DigestTopPreferences: 3,
		DigestMaxFieldChars:  400,
		MaxPromptChars:       24000,
		WritebackQueueSize:   256,
		WritebackWorkers:     2,
		WritebackMaxRetries:  3,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemosTimeout, err = durationFromEnv("MEMOS_TIMEOUT", cfg.MemosTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryReadTimeout, err = durationFromEnv("HISTORY_READ_TIMEOUT", cfg.HistoryReadTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.HistoryWindowTurns, err = intFromEnv("HISTORY_WINDOW_TURNS", cfg.HistoryWindowTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.DigestTopMemories, err = intFromEnv("DIGEST_TOP_MEMORIES", cfg.DigestTopMemories)
	if err != nil {
		return Config{}, err
	}
	cfg.DigestTopPreferences, err = intFromEnv("DIGEST_TOP_PREFERENCES", cfg.DigestTopPreferences)
	if err != nil {
		return Config{}, err
	}
	cfg.DigestMaxFieldChars, err = intFromEnv("DIGEST_MAX_FIELD_CHARS", cfg.DigestMaxFieldChars)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxPromptChars, err = intFromEnv("MAX_PROMPT_CHARS", cfg.MaxPromptChars)
	if err != nil {
		return Config{}, err
	}
	cfg.WritebackQueueSize, err = intFromEnv("WRITEBACK_QUEUE_SIZE", cfg.WritebackQueueSize)
	if err != nil {
		return Config{}, err
	}
	cfg.WritebackWorkers, err = intFromEnv("WRITEBACK_WORKERS", cfg.WritebackWorkers)
	if err != nil {
		return Config{}, err
	}
	cfg.WritebackMaxRetries, err = intFromEnv("WRITEBACK_MAX_RETRIES", cfg.WritebackMaxRetries)
	if err != nil {
		return Config{}, err
	}

	if cfg.HistoryWindowTurns <= 0 {
		return Config{}, fmt.Errorf("HISTORY_WINDOW_TURNS must be positive")
	}
	if cfg.DigestTopMemories <= 0 {
		return Config{}, fmt.Errorf("DIGEST_TOP_MEMORIES must be positive")
	}
	if cfg.DigestTopPreferences <= 0 {
		return Config{}, fmt.Errorf("DIGEST_TOP_PREFERENCES must be positive")
	}
	if cfg.DigestMaxFieldChars <= 0 {
		return Config{}, fmt.Errorf("DIGEST_MAX_FIELD_CHARS must be positive")
	}
	// 0 disables the prompt budget entirely.
	if cfg.MaxPromptChars < 0 {
		return Config{}, fmt.Errorf("MAX_PROMPT_CHARS must be >= 0")
	}
	if cfg.WritebackQueueSize <= 0 {
		return Config{}, fmt.Errorf("WRITEBACK_QUEUE_SIZE must be positive")
	}
	if cfg.WritebackWorkers <= 0 {
		return Config{}, fmt.Errorf("WRITEBACK_WORKERS must be positive")
	}
	if cfg.WritebackMaxRetries < 0 {
		return Config{}, fmt.Errorf("WRITEBACK_MAX_RETRIES must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
