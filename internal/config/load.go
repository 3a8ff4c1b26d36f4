package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is a resolved configuration plus where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	// Exists is false when Path was absent and defaults were used.
	Exists bool
}

// Load reads the config at explicitPath (or the XDG default), validates it,
// and overlays environment secrets. A missing file yields defaults and a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{Path: path}

	cfg, warnings, err := readFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = Default()
		warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}
	case err != nil:
		return Loaded{}, err
	default:
		loaded.Exists = true
	}

	ApplyEnv(&cfg, nil)
	loaded.Config = cfg
	loaded.Warnings = warnings
	return loaded, nil
}

func readFile(path string) (Config, []Warning, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil, err
	}
	if err != nil {
		return Config{}, nil, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Config{}, nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, warnings, nil
}
