package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the corpus root when --config is not given.
const ConfigFileName = "snapvet.yaml"

// Config is the optional per-corpus configuration file. Flags override any
// value set here.
type Config struct {
	// Engine is the replay engine binary path.
	Engine string `yaml:"engine"`

	// Jobs is the worker pool capacity.
	Jobs int `yaml:"jobs,omitempty"`

	// History is the run-history SQLite database path.
	History string `yaml:"history,omitempty"`

	// Timeout bounds one engine invocation (Go duration string, e.g.
	// "10m"). Zero disables the bound.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// UnmarshalYAML decodes the config, parsing timeout as a Go duration string
// (yaml.v3 has no native time.Duration support).
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		Engine  string `yaml:"engine"`
		Jobs    int    `yaml:"jobs"`
		History string `yaml:"history"`
		Timeout string `yaml:"timeout"`
	}
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	c.Engine = r.Engine
	c.Jobs = r.Jobs
	c.History = r.History
	if r.Timeout != "" {
		d, err := time.ParseDuration(r.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// LoadConfig reads a config file. A missing explicit path is an error; use
// LoadCorpusConfig for the optional per-corpus lookup.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Jobs < 0 {
		return Config{}, fmt.Errorf("config %s: jobs must not be negative", path)
	}
	return cfg, nil
}

// LoadCorpusConfig loads <corpus>/snapvet.yaml if it exists; a missing file
// yields a zero Config, not an error.
func LoadCorpusConfig(corpusDir string) (Config, error) {
	path := filepath.Join(corpusDir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("stat config %s: %w", path, err)
	}
	return LoadConfig(path)
}
