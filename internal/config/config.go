// Package config loads project-level defaults from .declsql.yaml.
// Command-line flags override anything set here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up from the working directory
// upward.
const FileName = ".declsql.yaml"

// Config holds project defaults for the CLI.
type Config struct {
	Dialect    string   `yaml:"dialect"`
	Magic      bool     `yaml:"magic"`
	Format     string   `yaml:"format"`
	OutputFile string   `yaml:"output_file"`
	Functions  []string `yaml:"functions"`
	ScratchDir string   `yaml:"scratch_dir"`
	Verbose    bool     `yaml:"verbose"`
}

// Load reads the config at path. An empty path searches from the
// working directory up to the filesystem root; no file found yields
// the zero config.
func Load(path string) (Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("locating working directory: %w", err)
		}
		path = search(wd)
		if path == "" {
			return Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// search walks from dir to the root looking for the config file.
func search(dir string) string {
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
