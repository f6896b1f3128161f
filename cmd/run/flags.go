package run

import (
	"github.com/spf13/cobra"

	"github.com/conveyr/conveyr/cmd/util"
)

// bindRunFlags binds the cobra cmd flags to the equivalent config value
// being managed by viper. This bridges the config between cobra flags and
// viper flags.
func bindRunFlags(command *cobra.Command) {
	defaultConfig := DefaultConfig()
	flags := command.Flags()

	flags.String("dataset-engine", defaultConfig.Dataset.Engine, "the dataset engine to iterate ('memory' or 'sqlite')")
	util.MustBindPFlag("dataset.engine", flags.Lookup("dataset-engine"))
	util.MustBindEnv("dataset.engine", "CONVEYR_DATASET_ENGINE")

	flags.String("dataset-uri", defaultConfig.Dataset.URI, "the sqlite datastore URI, e.g. 'file:records.db'")
	util.MustBindPFlag("dataset.uri", flags.Lookup("dataset-uri"))
	util.MustBindEnv("dataset.uri", "CONVEYR_DATASET_URI")

	flags.String("dataset-table", defaultConfig.Dataset.Table, "the sqlite table holding the records")
	util.MustBindPFlag("dataset.table", flags.Lookup("dataset-table"))
	util.MustBindEnv("dataset.table", "CONVEYR_DATASET_TABLE")

	flags.String("dataset-key-column", defaultConfig.Dataset.KeyColumn, "the sqlite column holding the record keys")
	util.MustBindPFlag("dataset.keyColumn", flags.Lookup("dataset-key-column"))
	util.MustBindEnv("dataset.keyColumn", "CONVEYR_DATASET_KEY_COLUMN")

	flags.Int("dataset-size", defaultConfig.Dataset.Size, "the number of synthetic records for the memory engine")
	util.MustBindPFlag("dataset.size", flags.Lookup("dataset-size"))
	util.MustBindEnv("dataset.size", "CONVEYR_DATASET_SIZE")

	flags.String("actions-file", defaultConfig.ActionsFile, "path to a serialized action log to replay instead of the demo actions")
	util.MustBindPFlag("actionsFile", flags.Lookup("actions-file"))
	util.MustBindEnv("actionsFile", "CONVEYR_ACTIONS_FILE")

	flags.Int("batch-size", defaultConfig.Run.BatchSize, "the number of keys per batch")
	util.MustBindPFlag("run.batchSize", flags.Lookup("batch-size"))
	util.MustBindEnv("run.batchSize", "CONVEYR_BATCH_SIZE")

	flags.Int("prefetch", defaultConfig.Run.Prefetch, "the number of batches computed ahead of consumption (0 disables prefetching)")
	util.MustBindPFlag("run.prefetch", flags.Lookup("prefetch"))
	util.MustBindEnv("run.prefetch", "CONVEYR_PREFETCH")

	flags.Int("epochs", defaultConfig.Run.Epochs, "the number of passes over the dataset (negative iterates without end)")
	util.MustBindPFlag("run.epochs", flags.Lookup("epochs"))
	util.MustBindEnv("run.epochs", "CONVEYR_EPOCHS")

	flags.Bool("shuffle", defaultConfig.Run.Shuffle, "permute key order per epoch")
	util.MustBindPFlag("run.shuffle", flags.Lookup("shuffle"))
	util.MustBindEnv("run.shuffle", "CONVEYR_SHUFFLE")

	flags.Int64("seed", defaultConfig.Run.Seed, "the shuffle seed (0 derives one from the clock)")
	util.MustBindPFlag("run.seed", flags.Lookup("seed"))
	util.MustBindEnv("run.seed", "CONVEYR_SEED")

	flags.Bool("drop-last", defaultConfig.Run.DropLast, "skip an epoch's short trailing batch")
	util.MustBindPFlag("run.dropLast", flags.Lookup("drop-last"))
	util.MustBindEnv("run.dropLast", "CONVEYR_DROP_LAST")

	flags.String("target", defaultConfig.Run.Target, "the worker execution model ('goroutines' or 'processes')")
	util.MustBindPFlag("run.target", flags.Lookup("target"))
	util.MustBindEnv("run.target", "CONVEYR_TARGET")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable the Prometheus metrics endpoint")
	util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	util.MustBindEnv("metrics.enabled", "CONVEYR_METRICS_ENABLED")

	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the metrics endpoint on")
	util.MustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	util.MustBindEnv("metrics.addr", "CONVEYR_METRICS_ADDR")

	flags.String("log-format", defaultConfig.Log.Format, "the log format ('text' or 'json')")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "CONVEYR_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level ('none', 'debug', 'info', 'warn', 'error', 'fatal')")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "CONVEYR_LOG_LEVEL")
}
