package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/matt0x6f/cascade-core/internal/model"
)

// LoadDescriptor reads a connection descriptor from a TOML file
func LoadDescriptor(path string) (model.Descriptor, error) {
	var desc model.Descriptor

	contents, err := os.ReadFile(path)
	if err != nil {
		return desc, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(contents, &desc); err != nil {
		return desc, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return desc, nil
}

// DefaultDataDir returns the per-user data directory for the preferences
// database
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, appName)
}
