package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCQA_"

// LoadDotEnv loads KEY=VALUE pairs from the given .env files (".env" when none are given)
// into the process environment. Variables already set are not overwritten and missing
// files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// ApplyEnv overrides cfg with DOCQA_* environment variables. Unparseable numeric or boolean
// values are ignored.
func ApplyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "DEBUG"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Debug = b
		}
	}
	setString("HOST", &cfg.Server.Host)
	setInt("PORT", &cfg.Server.Port)
	setString("SNAPSHOT_PATH", &cfg.Storage.SnapshotPath)
	setString("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	setString("EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	setString("EMBEDDING_MODEL", &cfg.Embedding.Model)
	setString("LLM_PROVIDER", &cfg.LLM.Provider)
	setString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("LLM_MODEL", &cfg.LLM.Model)
	setString("WATCH_DIRECTORY", &cfg.Watch.Directory)
	setInt("TOP_K", &cfg.Query.TopK)
}
