package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full run configuration. One Config describes one end-to-end
// invocation: load the CSV, build windows, train the four variants, evaluate.
type Config struct {
	Data     DataConfig     `json:"data"`
	Model    ModelConfig    `json:"model"`
	Training TrainingConfig `json:"training"`
	Logging  LoggingConfig  `json:"logging"`
}

// DataConfig controls CSV ingestion, splitting and windowing.
type DataConfig struct {
	// CSVPath points at the bike-share arrivals export.
	CSVPath string `json:"csvPath"`
	// WindowLength is the number of consecutive rows per model input window.
	WindowLength int `json:"windowLength"`
	// RollingWindow is the look-back length for the demand rolling stats.
	RollingWindow int `json:"rollingWindow"`
	// TrainFraction and ValFraction are cumulative positional split points.
	// Test takes the remainder. Split is by row position, never shuffled.
	TrainFraction float64 `json:"trainFraction"`
	ValFraction   float64 `json:"valFraction"`
}

// ModelConfig holds the architecture hyperparameters shared by all variants.
type ModelConfig struct {
	HiddenSize int     `json:"hiddenSize"`
	Layers     int     `json:"layers"`
	Dropout    float64 `json:"dropout"`
	// Heads is the head count for the attention variants.
	Heads int   `json:"heads"`
	Seed  int64 `json:"seed"`
}

// TrainingConfig carries the trainer/evaluator settings. It replaces any
// global compute state: trainer and evaluator are constructed from it.
type TrainingConfig struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batchSize"`
	LearningRate float64 `json:"learningRate"`
	Patience     int     `json:"patience"`
	// CheckpointDir receives <variant>_best.ckpt and <variant>_final.ckpt.
	CheckpointDir string `json:"checkpointDir"`
	// PlotDir receives per-variant loss-curve PNGs. Empty disables plotting.
	PlotDir string `json:"plotDir"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// SetDefaults fills zero values with the pipeline defaults.
func (c *Config) SetDefaults() {
	if c.Data.WindowLength == 0 {
		c.Data.WindowLength = 15
	}
	if c.Data.RollingWindow == 0 {
		c.Data.RollingWindow = 15
	}
	if c.Data.TrainFraction == 0 {
		c.Data.TrainFraction = 0.70
	}
	if c.Data.ValFraction == 0 {
		c.Data.ValFraction = 0.15
	}
	if c.Model.HiddenSize == 0 {
		c.Model.HiddenSize = 256
	}
	if c.Model.Layers == 0 {
		c.Model.Layers = 2
	}
	if c.Model.Dropout == 0 {
		c.Model.Dropout = 0.5
	}
	if c.Model.Heads == 0 {
		c.Model.Heads = 4
	}
	if c.Training.Epochs == 0 {
		c.Training.Epochs = 100
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 32
	}
	if c.Training.LearningRate == 0 {
		c.Training.LearningRate = 1e-4
	}
	if c.Training.Patience == 0 {
		c.Training.Patience = 10
	}
	if c.Training.CheckpointDir == "" {
		c.Training.CheckpointDir = "checkpoints"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Data.CSVPath == "" {
		return fmt.Errorf("data.csvPath is required")
	}
	if c.Data.WindowLength < 1 {
		return fmt.Errorf("data.windowLength must be >= 1, got %d", c.Data.WindowLength)
	}
	if c.Data.TrainFraction <= 0 || c.Data.ValFraction <= 0 ||
		c.Data.TrainFraction+c.Data.ValFraction >= 1 {
		return fmt.Errorf("split fractions must be positive and sum below 1, got train=%v val=%v",
			c.Data.TrainFraction, c.Data.ValFraction)
	}
	if c.Model.HiddenSize < 1 || c.Model.Layers < 1 {
		return fmt.Errorf("model.hiddenSize and model.layers must be >= 1")
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return fmt.Errorf("model.dropout must be in [0, 1), got %v", c.Model.Dropout)
	}
	if c.Model.Heads < 1 {
		return fmt.Errorf("model.heads must be >= 1, got %d", c.Model.Heads)
	}
	if c.Model.HiddenSize%c.Model.Heads != 0 {
		return fmt.Errorf("model.hiddenSize (%d) must be divisible by model.heads (%d)",
			c.Model.HiddenSize, c.Model.Heads)
	}
	if c.Training.Epochs < 1 || c.Training.BatchSize < 1 || c.Training.Patience < 1 {
		return fmt.Errorf("training.epochs, training.batchSize and training.patience must be >= 1")
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("training.learningRate must be positive, got %v", c.Training.LearningRate)
	}
	return nil
}

// Load reads the configuration file at path (yaml or json by extension),
// applies VELOCAST_ environment overrides, then defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. VELOCAST_DATA__CSVPATH.
	if err := k.Load(env.Provider("VELOCAST_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "velocast_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
