package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/metobs-export/internal/export"
)

// Failure policies for a station whose export cannot be fetched or parsed.
const (
	FailurePolicySkip  = "skip"
	FailurePolicyAbort = "abort"
)

const (
	defaultAPIURL  = "https://opendata-download-metobs.smhi.se/api"
	maxConcurrency = 64
)

// Config holds all harvester settings, populated from environment variables.
type Config struct {
	APIURL        string
	Parameter     string
	StationLimit  int // 0 means every station
	Period        string
	FailurePolicy string

	FetchConcurrency int
	FetchTimeout     time.Duration
	FetchMaxRetries  int
	FetchBackoff     time.Duration
	FetchRateLimit   float64 // requests per second; 0 disables

	ExportPath        string
	ExportSheetWidth  int
	ExportSheetPrefix string
	DryRun            bool

	// Optional surfaces; empty disables them.
	HTTPAddr     string
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables (optionally .env),
// applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	limit, err := ParseStationLimit(sharedcfg.EnvOrDefault("METOBS_STATION_LIMIT", "all"))
	if err != nil {
		return nil, fmt.Errorf("invalid METOBS_STATION_LIMIT: %w", err)
	}

	concurrency, err := parsePositiveInt("FETCH_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	if concurrency > maxConcurrency {
		return nil, fmt.Errorf("invalid FETCH_CONCURRENCY: must be at most %d", maxConcurrency)
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	fetchBackoff, err := parseDuration("FETCH_BACKOFF", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FETCH_RATE_LIMIT", "10"), 64)
	if err != nil || rateLimit < 0 {
		return nil, errors.New("invalid FETCH_RATE_LIMIT: must be a non-negative number")
	}

	maxRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_MAX_RETRIES", "3"))
	if err != nil || maxRetries < 0 {
		return nil, errors.New("invalid FETCH_MAX_RETRIES")
	}

	sheetWidth, err := parsePositiveInt("EXPORT_SHEET_WIDTH", export.DefaultSheetWidth)
	if err != nil {
		return nil, err
	}

	parameter := strings.TrimSpace(sharedcfg.EnvOrDefault("METOBS_PARAMETER", "19"))

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		APIURL:        strings.TrimRight(sharedcfg.EnvOrDefault("METOBS_API_URL", defaultAPIURL), "/"),
		Parameter:     parameter,
		StationLimit:  limit,
		Period:        sharedcfg.EnvOrDefault("METOBS_PERIOD", "corrected-archive"),
		FailurePolicy: strings.ToLower(sharedcfg.EnvOrDefault("STATION_FAILURE_POLICY", FailurePolicySkip)),

		FetchConcurrency: concurrency,
		FetchTimeout:     fetchTimeout,
		FetchMaxRetries:  maxRetries,
		FetchBackoff:     fetchBackoff,
		FetchRateLimit:   rateLimit,

		ExportPath:        sharedcfg.EnvOrDefault("EXPORT_PATH", "smhi_workbook.xlsx"),
		ExportSheetWidth:  sheetWidth,
		ExportSheetPrefix: sharedcfg.EnvOrDefault("EXPORT_SHEET_PREFIX", DefaultSheetPrefix(parameter)),
		DryRun:            parseBool(os.Getenv("DRY_RUN")),

		HTTPAddr:     os.Getenv("HTTP_ADDR"),
		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "metobs-daily-readings"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flags can override after Load.
func (c *Config) Validate() error {
	if c.Parameter == "" {
		return errors.New("METOBS_PARAMETER is required")
	}
	if c.Period == "" {
		return errors.New("METOBS_PERIOD is required")
	}
	if c.StationLimit < 0 {
		return errors.New("invalid METOBS_STATION_LIMIT: must not be negative")
	}
	if c.FailurePolicy != FailurePolicySkip && c.FailurePolicy != FailurePolicyAbort {
		return fmt.Errorf("invalid STATION_FAILURE_POLICY %q: want %q or %q", c.FailurePolicy, FailurePolicySkip, FailurePolicyAbort)
	}
	if !c.DryRun && c.ExportPath == "" {
		return errors.New("EXPORT_PATH is required")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}
	return nil
}

// KafkaEnabled reports whether daily rows are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ParseStationLimit accepts "all" or a non-negative count; 0 and "all" both
// mean every station.
func ParseStationLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("want a number or \"all\", got %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative, got %d", n)
	}
	return n, nil
}

// DefaultSheetPrefix names sheets after the well-known daily temperature
// parameters, falling back to the parameter key.
func DefaultSheetPrefix(parameter string) string {
	switch parameter {
	case "19":
		return "Min temp #"
	case "20":
		return "Max temp #"
	case "2":
		return "Avg temp #"
	default:
		return "Param " + parameter + " #"
	}
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	return s == "1" || strings.EqualFold(s, "true")
}
