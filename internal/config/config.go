package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Backend          string
	BackendTimeout   time.Duration
	GeminiKey        string
	GeminiModel      string
	OpenAIKey        string
	OpenAIEndpoint   string
	OpenAIModel      string
	CaptionLanguages []string
	CaptionFallback  bool
	Database         string
	UploadDir        string
	Port             string
	LogLevel         string
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint:   getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BackendTimeout:   getDuration("BACKEND_TIMEOUT", 0),
		CaptionLanguages: splitList(getEnv("CAPTION_LANGUAGES", "en")),
		CaptionFallback:  getBool("CAPTION_FALLBACK", true),
		Database:         os.Getenv("DATABASE_PATH"),
		UploadDir:        getEnv("UPLOAD_DIR", "./data/uploads"),
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
	cfg.Backend = resolveBackend(os.Getenv("BACKEND"), cfg.GeminiKey, cfg.OpenAIKey)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", cfg.UploadDir, err)
	}
	if cfg.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
		}
	}

	return cfg
}

// resolveBackend picks the explicit choice when given, otherwise the first
// backend with a credential. Gemini wins when nothing is configured so that a
// missing key shows up as a failed call rather than a startup error.
func resolveBackend(explicit, geminiKey, openAIKey string) string {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "gemini":
		return "gemini"
	case "openai":
		return "openai"
	}
	if geminiKey == "" && openAIKey != "" {
		return "openai"
	}
	return "gemini"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("ignoring invalid %s=%q: %v", key, raw, err)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("ignoring invalid %s=%q: %v", key, raw, err)
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
