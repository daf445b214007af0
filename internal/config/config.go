package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Config holds all run settings, populated from environment variables.
type Config struct {
	Regions     []string
	WindowStart time.Time
	WindowEnd   time.Time

	LowessSpan       float64
	MaxK             int
	BootstrapSamples int
	RandomSeed       uint64

	InputPath       string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka sink configuration (feature-flagged via KAFKA_ENABLED).
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	windowStart, err := parseDate("WINDOW_START", "2020-01-01")
	if err != nil {
		return nil, err
	}
	windowEnd, err := parseDate("WINDOW_END", "2021-12-31")
	if err != nil {
		return nil, err
	}

	span, err := parseFloat("LOWESS_SPAN", 0.05)
	if err != nil {
		return nil, err
	}
	maxK, err := parseInt("MAX_K", 10)
	if err != nil {
		return nil, err
	}
	bootstrap, err := parseInt("BOOTSTRAP_SAMPLES", 100)
	if err != nil {
		return nil, err
	}
	seed, err := parseUint("RANDOM_SEED", 1)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		Regions:     splitList(os.Getenv("REGIONS")),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,

		LowessSpan:       span,
		MaxK:             maxK,
		BootstrapSamples: bootstrap,
		RandomSeed:       seed,

		InputPath:       envOrDefault("INPUT_PATH", "-"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:   splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: strings.TrimSpace(envOrDefault("KAFKA_SINK_TOPIC", "region-cluster-assignments")),
		KafkaEnabled:   kafkaEnabled,
	}

	if len(cfg.Regions) == 0 {
		return nil, errors.New("REGIONS is required")
	}
	if !cfg.WindowEnd.After(cfg.WindowStart) {
		return nil, errors.New("WINDOW_END must be after WINDOW_START")
	}
	if cfg.LowessSpan <= 0 || cfg.LowessSpan > 1 {
		return nil, errors.New("LOWESS_SPAN must be in (0, 1]")
	}
	if cfg.MaxK < 1 {
		return nil, errors.New("MAX_K must be at least 1")
	}
	if cfg.MaxK >= len(cfg.Regions) {
		return nil, fmt.Errorf("MAX_K (%d) must be below the number of regions (%d)", cfg.MaxK, len(cfg.Regions))
	}
	if cfg.BootstrapSamples < 1 {
		return nil, errors.New("BOOTSTRAP_SAMPLES must be at least 1")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is empty")
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDate(key, def string) (time.Time, error) {
	v := envOrDefault(key, def)
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t.UTC(), nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseUint(key string, def uint64) (uint64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	v := envOrDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
