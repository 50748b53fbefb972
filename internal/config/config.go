package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Benchmark Benchmark `yaml:"benchmark"`
	Workers   Workers   `yaml:"workers"`
	Results   Results   `yaml:"results"`
	Metrics   Metrics   `yaml:"metrics"`
	Log       Log       `yaml:"log"`
}

// Benchmark is the immutable per-run evaluation setup. It travels with every
// task to the worker processes, so it carries JSON tags as well.
type Benchmark struct {
	TrainingInstances     []int         `yaml:"training_instances" json:"training_instances"`
	Dims                  []int         `yaml:"dims" json:"dims"`
	BudgetFactor          int           `yaml:"budget_factor" json:"budget_factor"`
	Bounds                []Bound       `yaml:"bounds" json:"bounds"`
	AllowedImports        []string      `yaml:"allowed_imports" json:"allowed_imports"`
	EvalTimeout           time.Duration `yaml:"eval_timeout" json:"eval_timeout"`
	UseWorkerPool         bool          `yaml:"use_worker_pool" json:"use_worker_pool"`
	WorkerRecycleInterval int           `yaml:"worker_recycle_interval" json:"worker_recycle_interval"`
	Seeds                 []int         `yaml:"seeds" json:"seeds,omitempty"`
}

type Bound struct {
	Lo float64 `yaml:"lo" json:"lo"`
	Hi float64 `yaml:"hi" json:"hi"`
}

type Workers struct {
	Size           int           `yaml:"size"`
	Isolation      string        `yaml:"isolation"`
	Image          string        `yaml:"image"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	CPULimit       float64       `yaml:"cpu_limit"`
	MemoryLimit    int64         `yaml:"memory_limit"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	IsolationProcess   = "process"
	IsolationContainer = "container"
)

// Default mirrors the feasibility-stage MA-BBOB setup.
func Default() *Config {
	cfg := &Config{
		Benchmark: Benchmark{
			TrainingInstances:     []int{0, 7, 14},
			Dims:                  []int{5},
			BudgetFactor:          2000,
			Bounds:                []Bound{{Lo: -5, Hi: 5}},
			AllowedImports:        []string{"math", "math/rand", "math/rand/v2", "sort"},
			EvalTimeout:           100 * time.Minute,
			UseWorkerPool:         true,
			WorkerRecycleInterval: 50,
		},
	}
	if err := validate(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := cfg.Benchmark.Validate(); err != nil {
		return err
	}
	w := &cfg.Workers
	if w.Size == 0 {
		w.Size = 1
	}
	if w.Size < 0 {
		return fmt.Errorf("workers.size must be positive")
	}
	if w.Isolation == "" {
		w.Isolation = IsolationProcess
	}
	switch w.Isolation {
	case IsolationProcess:
	case IsolationContainer:
		if w.Image == "" {
			return fmt.Errorf("workers.image is required for container isolation")
		}
	default:
		return fmt.Errorf("workers.isolation: unknown mode %q", w.Isolation)
	}
	if w.StartupTimeout == 0 {
		w.StartupTimeout = 30 * time.Second
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

// Validate checks a benchmark definition. Workers re-validate the copy they
// receive, so this must not depend on anything outside b.
func (b *Benchmark) Validate() error {
	if len(b.TrainingInstances) == 0 {
		return fmt.Errorf("benchmark.training_instances: at least one instance is required")
	}
	for _, id := range b.TrainingInstances {
		if id < 0 {
			return fmt.Errorf("benchmark.training_instances: negative instance id %d", id)
		}
	}
	if len(b.Dims) == 0 {
		return fmt.Errorf("benchmark.dims: at least one dimension is required")
	}
	for _, d := range b.Dims {
		if d < 1 {
			return fmt.Errorf("benchmark.dims: dimension %d must be at least 1", d)
		}
	}
	if b.BudgetFactor < 1 {
		return fmt.Errorf("benchmark.budget_factor must be at least 1")
	}
	if len(b.Bounds) == 0 {
		return fmt.Errorf("benchmark.bounds: at least one bound is required")
	}
	for i, bd := range b.Bounds {
		if !(bd.Lo < bd.Hi) {
			return fmt.Errorf("benchmark.bounds[%d]: lo %g must be below hi %g", i, bd.Lo, bd.Hi)
		}
	}
	if maxDim := slices.Max(b.Dims); len(b.Bounds) != 1 && len(b.Bounds) < maxDim {
		return fmt.Errorf("benchmark.bounds: need 1 or at least %d entries, got %d", maxDim, len(b.Bounds))
	}
	if b.EvalTimeout <= 0 {
		return fmt.Errorf("benchmark.eval_timeout must be positive")
	}
	if b.WorkerRecycleInterval < 0 {
		return fmt.Errorf("benchmark.worker_recycle_interval must not be negative")
	}
	return nil
}

// BoundsFor returns one bound per coordinate for a dim-dimensional run.
// A single configured bound applies to every coordinate.
func (b *Benchmark) BoundsFor(dim int) []Bound {
	out := make([]Bound, dim)
	for i := range out {
		if len(b.Bounds) == 1 {
			out[i] = b.Bounds[0]
		} else {
			out[i] = b.Bounds[i]
		}
	}
	return out
}

// Runs is the number of instance runs one evaluation performs.
func (b *Benchmark) Runs() int {
	n := len(b.Dims) * len(b.TrainingInstances)
	if len(b.Seeds) > 0 {
		n *= len(b.Seeds)
	}
	return n
}
