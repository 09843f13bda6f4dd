package layer

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/fumi-engineer/siamese/tensor"
)

// Built-in class names.
const (
	ClassL1Dist  = "L1Dist"
	ClassLinear  = "Linear"
	ClassSiLU    = "SiLU"
	ClassSigmoid = "Sigmoid"
)

// Config is the saved form of a layer. The first four fields are common to
// every layer; the rest are only written by Linear.
type Config struct {
	ClassName string `yaml:"class_name" json:"class_name"`
	Name      string `yaml:"name" json:"name"`
	Trainable bool   `yaml:"trainable" json:"trainable"`
	DType     string `yaml:"dtype" json:"dtype"`

	InputDim int  `yaml:"input_dim,omitempty" json:"input_dim,omitempty"`
	Units    int  `yaml:"units,omitempty" json:"units,omitempty"`
	UseBias  bool `yaml:"use_bias,omitempty" json:"use_bias,omitempty"`
}

// Factory rebuilds a layer from its Config. Options carry runtime settings
// such as the logger that are not part of the saved form.
type Factory func(cfg Config, opts ...Option) (Serializable, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		ClassL1Dist: func(cfg Config, opts ...Option) (Serializable, error) {
			return NewDistance(append(opts[:len(opts):len(opts)], WithName(cfg.Name), WithDType(cfg.DType))...), nil
		},
		ClassLinear: func(cfg Config, _ ...Option) (Serializable, error) {
			if cfg.InputDim <= 0 || cfg.Units <= 0 {
				return nil, fmt.Errorf("linear %q: input_dim and units must be positive, got %d and %d", cfg.Name, cfg.InputDim, cfg.Units)
			}
			if cfg.InputDim > math.MaxInt32/cfg.Units {
				return nil, fmt.Errorf("linear %q: %dx%d weight is too large", cfg.Name, cfg.Units, cfg.InputDim)
			}
			l := NewLinear(cfg.InputDim, cfg.Units, cfg.UseBias)
			l.name = cfg.Name
			return l, nil
		},
		ClassSiLU: func(cfg Config, _ ...Option) (Serializable, error) {
			return &SiLU{name: cfg.Name, dtype: cfg.DType}, nil
		},
		ClassSigmoid: func(cfg Config, _ ...Option) (Serializable, error) {
			return &Sigmoid{name: cfg.Name, dtype: cfg.DType}, nil
		},
	}
)

// Register adds or replaces the factory for className.
func Register(className string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[className] = f
}

// FromConfig rebuilds a layer from its saved configuration.
func FromConfig(cfg Config, opts ...Option) (Serializable, error) {
	if _, err := tensor.ParseDType(cfg.DType); err != nil {
		return nil, fmt.Errorf("layer %q: %w", cfg.Name, err)
	}

	registryMu.RLock()
	f, ok := registry[cfg.ClassName]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, cfg.ClassName)
	}
	return f(cfg, opts...)
}

// dtypeOrDefault keeps a saved dtype spelling such as "float32" as written.
// Linear always reports the dtype of its weights.
func dtypeOrDefault(dtype string) string {
	if dtype == "" {
		return tensor.F32.String()
	}
	return dtype
}

func uniqueName(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}
