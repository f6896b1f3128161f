// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI
// flags, environment variables prefixed with CONVEYR, or config.yaml (in
// that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CONVEYR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/conveyr", "$HOME/.conveyr", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:   "conveyr",
		Short: "A deferred-action batch pipeline with asynchronous, order-preserving prefetch",
		Long: `A deferred-action batch pipeline with asynchronous, order-preserving prefetch.

Conveyr records actions against a dataset in an append-only log and replays
them per batch when a run starts, computing batches ahead of consumption on a
bounded worker pool while delivering them strictly in source order.`,
	}
}
