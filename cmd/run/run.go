// Package run contains the command to run a conveyr pipeline over a
// dataset.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conveyr/conveyr/internal/build"
	"github.com/conveyr/conveyr/pkg/dataset"
	"github.com/conveyr/conveyr/pkg/dataset/memory"
	"github.com/conveyr/conveyr/pkg/dataset/sqlite"
	"github.com/conveyr/conveyr/pkg/logger"
	"github.com/conveyr/conveyr/pkg/pipeline"
)

// NewRunCommand returns the command that executes a streaming pipeline
// run.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch pipeline over a dataset",
		Long:  "Run a batch pipeline over a dataset, replaying the action log per batch with asynchronous, order-preserving prefetch.",
		RunE:  runE,
		Args:  cobra.NoArgs,
	}
	bindRunFlags(cmd)
	return cmd
}

func runE(_ *cobra.Command, _ []string) error {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return RunPipeline(context.Background(), cfg)
}

// RunPipeline executes one streaming run as configured: it opens the
// dataset, declares (or loads) the action log and drains the run, serving
// Prometheus metrics on the side when enabled. It blocks until the run
// finishes or the process receives SIGINT/SIGTERM.
func RunPipeline(ctx context.Context, cfg Config) error {
	if err := cfg.Verify(); err != nil {
		return err
	}

	log := logger.MustNewLogger(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, cleanup, err := openDataset(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := buildPipeline(cfg, ds, log)
	if err != nil {
		return err
	}

	log.Info(
		"starting run",
		zap.String("version", build.Version),
		zap.String("engine", cfg.Dataset.Engine),
		zap.Int("keys", p.Len()),
		zap.Int("actions", p.Actions().Len()),
		zap.Int("batch_size", cfg.Run.BatchSize),
		zap.Int("prefetch", cfg.Run.Prefetch),
	)

	g, ctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		g.Go(func() error {
			log.Info("metrics endpoint up", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsServer.Shutdown(shutdownCtx)
			}
		}()

		start := time.Now()
		err := p.Run(ctx, pipeline.RunOptions{
			BatchSize: cfg.Run.BatchSize,
			Shuffle:   cfg.Run.Shuffle,
			Epochs:    cfg.Run.Epochs,
			DropLast:  cfg.Run.DropLast,
			Seed:      cfg.Run.Seed,
			Prefetch:  cfg.Run.Prefetch,
			Target:    pipeline.Target(cfg.Run.Target),
		})
		if err != nil {
			return err
		}

		log.Info("run finished", zap.Duration("elapsed", time.Since(start)))
		return nil
	})

	return g.Wait()
}

func openDataset(cfg Config, log logger.Logger) (dataset.Dataset, func(), error) {
	switch cfg.Dataset.Engine {
	case "memory":
		return memory.Sequence(cfg.Dataset.Size), func() {}, nil
	case "sqlite":
		ds, err := sqlite.New(cfg.Dataset.URI, &sqlite.Config{
			Table:         cfg.Dataset.Table,
			KeyColumn:     cfg.Dataset.KeyColumn,
			Logger:        log,
			ExportMetrics: cfg.Metrics.Enabled,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite dataset: %w", err)
		}
		return ds, ds.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dataset engine %q", cfg.Dataset.Engine)
	}
}

func buildPipeline(cfg Config, ds dataset.Dataset, log logger.Logger) (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{pipeline.WithLogger(log)}

	if cfg.ActionsFile != "" {
		data, err := os.ReadFile(cfg.ActionsFile)
		if err != nil {
			return nil, fmt.Errorf("read actions file: %w", err)
		}
		actions := pipeline.NewLog()
		if err := json.Unmarshal(data, actions); err != nil {
			return nil, fmt.Errorf("parse actions file %q: %w", cfg.ActionsFile, err)
		}
		opts = append(opts, pipeline.WithActions(actions))
		return pipeline.New(ds, builtinRegistry(), opts...), nil
	}

	p := pipeline.New(ds, builtinRegistry(), opts...).
		Do("scale", 2).
		DoNamed("tag", nil, map[string]any{"run": build.Version})
	return p, nil
}
