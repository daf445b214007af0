// Command analyze runs one clustering batch: it reads raw regional rows from
// a CSV file (or stdin), runs the clean/smooth/distance/cluster stages, prints
// the resulting assignment as JSON on stdout, and optionally publishes it to
// Kafka. Health and metrics endpoints are served for the duration of the run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/epi-clustering/internal/adapter/csvsource"
	"github.com/couchcryptid/epi-clustering/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/epi-clustering/internal/adapter/kafka"
	"github.com/couchcryptid/epi-clustering/internal/clean"
	"github.com/couchcryptid/epi-clustering/internal/config"
	"github.com/couchcryptid/epi-clustering/internal/observability"
	"github.com/couchcryptid/epi-clustering/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	input, closeInput, err := openInput(cfg.InputPath)
	if err != nil {
		logger.Error("failed to open input", "path", cfg.InputPath, "error", err)
		os.Exit(1)
	}
	defer closeInput()

	src := csvsource.New(input, logger)

	// Sink is feature-flagged via KAFKA_ENABLED; without it the assignment
	// only goes to stdout.
	var sink pipeline.Sink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	opts := pipeline.Options{
		Clean: clean.Params{
			Regions:     cfg.Regions,
			WindowStart: cfg.WindowStart,
			WindowEnd:   cfg.WindowEnd,
		},
		LowessSpan: cfg.LowessSpan,
		MaxK:       cfg.MaxK,
		Bootstrap:  cfg.BootstrapSamples,
		Seed:       cfg.RandomSeed,
	}
	p := pipeline.New(src, sink, opts, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	exitCode := 0
	assignment, err := p.Run(ctx)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		exitCode = 1
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(assignment); err != nil {
			logger.Error("failed to write assignment", "error", err)
			exitCode = 1
		}
	}

	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}

// openInput returns the raw CSV stream, treating "-" as stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
