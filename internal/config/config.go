package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Store     StoreConfig
	Analyzer  AnalyzerConfig
	Dashboard DashboardConfig
}

type StoreConfig struct {
	Path string
}

type AnalyzerConfig struct {
	Workers          int
	RulesPath        string
	Extractor        string // auto | text | binary
	ExtractorCommand string
}

type DashboardConfig struct {
	Addr      string
	CacheSize int
}

// Load builds the configuration from the environment, reading a .env file
// first when present. The result is a value injected at construction;
// nothing here is process-wide state.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			Path: getEnv("SCREENLENS_DB", "screenlens.db"),
		},
		Analyzer: AnalyzerConfig{
			Workers:          getEnvInt("SCREENLENS_WORKERS", runtime.NumCPU()),
			RulesPath:        getEnv("SCREENLENS_RULES", ""),
			Extractor:        getEnv("SCREENLENS_EXTRACTOR", "auto"),
			ExtractorCommand: getEnv("SCREENLENS_EXTRACT_CMD", ""),
		},
		Dashboard: DashboardConfig{
			Addr:      getEnv("SCREENLENS_ADDR", "127.0.0.1:8384"),
			CacheSize: getEnvInt("SCREENLENS_CACHE_SIZE", 128),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
