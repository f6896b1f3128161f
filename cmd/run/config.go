package run

import (
	"fmt"
)

// DatasetConfig selects and parameterizes the dataset the run iterates.
type DatasetConfig struct {
	// Engine is the dataset engine, either "memory" or "sqlite".
	Engine string `mapstructure:"engine"`

	// URI is the sqlite datastore URI, e.g. "file:records.db".
	URI string `mapstructure:"uri"`

	// Table is the sqlite table holding the records.
	Table string `mapstructure:"table"`

	// KeyColumn is the sqlite column holding the record keys.
	KeyColumn string `mapstructure:"keyColumn"`

	// Size is the number of synthetic records for the memory engine.
	Size int `mapstructure:"size"`
}

// RunConfig parameterizes the streaming run itself.
type RunConfig struct {
	BatchSize int    `mapstructure:"batchSize"`
	Prefetch  int    `mapstructure:"prefetch"`
	Epochs    int    `mapstructure:"epochs"`
	Shuffle   bool   `mapstructure:"shuffle"`
	Seed      int64  `mapstructure:"seed"`
	DropLast  bool   `mapstructure:"dropLast"`
	Target    string `mapstructure:"target"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// Config is the configuration of the run command, populated from flags,
// CONVEYR_* environment variables or config.yaml.
type Config struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	Run     RunConfig     `mapstructure:"run"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`

	// ActionsFile is an optional path to a serialized action log. When
	// empty the run replays the default demo actions.
	ActionsFile string `mapstructure:"actionsFile"`
}

// DefaultConfig returns the run command's defaults.
func DefaultConfig() Config {
	return Config{
		Dataset: DatasetConfig{
			Engine:    "memory",
			Table:     "records",
			KeyColumn: "id",
			Size:      10000,
		},
		Run: RunConfig{
			BatchSize: 64,
			Prefetch:  4,
			Epochs:    1,
			Target:    "goroutines",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "0.0.0.0:2112",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Verify checks the configuration before a run starts. Run option limits
// are enforced again by the pipeline itself.
func (c Config) Verify() error {
	switch c.Dataset.Engine {
	case "memory":
		if c.Dataset.Size < 1 {
			return fmt.Errorf("dataset size must be at least 1, got %d", c.Dataset.Size)
		}
	case "sqlite":
		if c.Dataset.URI == "" {
			return fmt.Errorf("the sqlite dataset engine requires a dataset URI")
		}
		if c.Dataset.Table == "" || c.Dataset.KeyColumn == "" {
			return fmt.Errorf("the sqlite dataset engine requires a table and a key column")
		}
	default:
		return fmt.Errorf("dataset engine must be one of ['memory', 'sqlite'], got %q", c.Dataset.Engine)
	}

	if c.Run.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.Run.BatchSize)
	}
	if c.Run.Prefetch < 0 {
		return fmt.Errorf("prefetch must not be negative, got %d", c.Run.Prefetch)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics are enabled but no metrics address is set")
	}

	return nil
}
