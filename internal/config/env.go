package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvDeepgramAPIKey = "DEEPGRAM_API_KEY"
	EnvDatabaseURL    = "REHEARSE_DATABASE_URL"
)

// LoadDotEnv reads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays secrets that are never read from the config file.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvDeepgramAPIKey); ok && strings.TrimSpace(v) != "" {
		cfg.Deepgram.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDatabaseURL); ok && strings.TrimSpace(v) != "" {
		cfg.Store.DSN = strings.TrimSpace(v)
	}
}
