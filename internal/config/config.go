// Package config assembles engine configuration in three layers:
// compiled defaults, an optional YAML file, then AWARENESS_* environment
// variables. Later layers override earlier ones field by field.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/awareness/internal/relevance"
	"github.com/roach88/awareness/internal/snapshot"
	"github.com/roach88/awareness/internal/textgen"
	"github.com/roach88/awareness/internal/world"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "AWARENESS_"

// Relevance threshold bounds accepted by Validate.
const (
	minRelevanceThreshold = 0
	maxRelevanceThreshold = 200
)

// Config is the complete engine configuration.
type Config struct {
	// Interval between scheduled cycles.
	Interval     time.Duration `yaml:"interval" env:"INTERVAL"`
	HistoryDepth int           `yaml:"history_depth" env:"HISTORY_DEPTH"`
	// Workers bounds the per-subscriber fan-out within a cycle.
	Workers     int    `yaml:"workers" env:"WORKERS"`
	JournalPath string `yaml:"journal_path" env:"JOURNAL_PATH"`

	Augment   Augment           `yaml:"augment" envPrefix:"AUGMENT_"`
	Relevance relevance.Weights `yaml:"relevance" envPrefix:"RELEVANCE_"`
}

// Augment configures optional notification text generation.
type Augment struct {
	Enabled     bool           `yaml:"enabled" env:"ENABLED"`
	Timeout     time.Duration  `yaml:"timeout" env:"TIMEOUT"`
	MinPriority world.Priority `yaml:"min_priority" env:"MIN_PRIORITY"`
	OpenAI      textgen.Config `yaml:"openai" envPrefix:"OPENAI_"`
}

// Default returns the compiled defaults.
func Default() Config {
	return Config{
		Interval:     30 * time.Second,
		HistoryDepth: snapshot.DefaultDepth,
		Workers:      8,
		Augment: Augment{
			Timeout:     2 * time.Second,
			MinPriority: world.PriorityHigh,
			OpenAI:      textgen.DefaultConfig(),
		},
		Relevance: relevance.DefaultWeights(),
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ uses
// the process environment.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.HistoryDepth < 2 {
		errs = append(errs, fmt.Errorf("history_depth must be at least 2, got %d", c.HistoryDepth))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if t := c.Relevance.RelevanceThreshold; t < minRelevanceThreshold || t > maxRelevanceThreshold {
		errs = append(errs, fmt.Errorf("relevance.relevance_threshold must be within %d..%d, got %d",
			minRelevanceThreshold, maxRelevanceThreshold, t))
	}
	for cat, need := range c.Relevance.ClearanceRequirements {
		if !cat.Valid() {
			errs = append(errs, fmt.Errorf("relevance.clearance_requirements: unknown category %q", cat))
		}
		if need < 0 || need > 100 {
			errs = append(errs, fmt.Errorf("relevance.clearance_requirements.%s must be within 0..100, got %d", cat, need))
		}
	}
	if c.Augment.Enabled && c.Augment.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("augment.timeout must be positive when augmentation is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
