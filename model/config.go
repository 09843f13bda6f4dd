// Package model provides the siamese similarity network built around the L1
// distance layer.
package model

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the model configuration.
type Config struct {
	InputDim  int  `yaml:"input_dim"`  // Flattened input features per sample
	HiddenDim int  `yaml:"hidden_dim"` // Encoder hidden width
	EmbedDim  int  `yaml:"embed_dim"`  // Embedding width fed to the distance layer
	Strict    bool `yaml:"strict"`     // Reject malformed distance calls instead of zero fallback

	// Concurrency bounds ScoreBatch workers; 0 means one per CPU.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// Default returns the default configuration: 100x100 RGB inputs encoded
// to 4096-wide embeddings.
func Default() Config {
	return Config{
		InputDim:  100 * 100 * 3,
		HiddenDim: 512,
		EmbedDim:  4096,
	}
}

// Tiny returns a tiny model configuration for testing.
func Tiny() Config {
	return Config{
		InputDim:  16,
		HiddenDim: 32,
		EmbedDim:  8,
	}
}

// MaxParams bounds the parameter count of any model New or Load will build.
const MaxParams = 1 << 30

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := c.validateDims(); err != nil {
		return err
	}
	if n, ok := c.paramCount(); !ok || n > MaxParams {
		return fmt.Errorf("model too large: input_dim %d, hidden_dim %d, embed_dim %d exceed %d parameters",
			c.InputDim, c.HiddenDim, c.EmbedDim, MaxParams)
	}
	return nil
}

func (c Config) validateDims() error {
	switch {
	case c.InputDim <= 0:
		return fmt.Errorf("input_dim must be positive, got %d", c.InputDim)
	case c.HiddenDim <= 0:
		return fmt.Errorf("hidden_dim must be positive, got %d", c.HiddenDim)
	case c.EmbedDim <= 0:
		return fmt.Errorf("embed_dim must be positive, got %d", c.EmbedDim)
	case c.Concurrency < 0:
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	return nil
}

// ApplyDefaults fills zero dimensions from Default.
func ApplyDefaults(cfg *Config) {
	def := Default()
	if cfg.InputDim == 0 {
		cfg.InputDim = def.InputDim
	}
	if cfg.HiddenDim == 0 {
		cfg.HiddenDim = def.HiddenDim
	}
	if cfg.EmbedDim == 0 {
		cfg.EmbedDim = def.EmbedDim
	}
}

// LoadConfig reads and parses the config file at path and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// TotalParams returns the number of trainable parameters of a valid config.
func (c Config) TotalParams() int {
	n, _ := c.paramCount()
	return n
}

// paramCount reports false when the count does not fit in an int.
func (c Config) paramCount() (int, bool) {
	total := 0
	for _, l := range [][2]int{{c.InputDim, c.HiddenDim}, {c.HiddenDim, c.EmbedDim}, {c.EmbedDim, 1}} {
		in, out := l[0], l[1]
		if in > 0 && out > (math.MaxInt-out)/in {
			return 0, false
		}
		n := in*out + out
		if total > math.MaxInt-n {
			return 0, false
		}
		total += n
	}
	return total, true
}
