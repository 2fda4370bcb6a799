// Command harvest downloads one SMHI metobs parameter for every qualifying
// station and writes the daily readings to a spreadsheet workbook.
//
// Usage:
//
//	go run ./cmd/harvest -parameter 19 -stations 10 -out min_temp.xlsx
//
// Settings not given as flags are read from the environment (see
// internal/config). Set -list-parameters to print the parameter keys of the
// catalog and exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/metobs-export/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/metobs-export/internal/adapter/kafka"
	"github.com/couchcryptid/metobs-export/internal/adapter/metobs"
	"github.com/couchcryptid/metobs-export/internal/adapter/xlsx"
	"github.com/couchcryptid/metobs-export/internal/config"
	"github.com/couchcryptid/metobs-export/internal/export"
	"github.com/couchcryptid/metobs-export/internal/observability"
	"github.com/couchcryptid/metobs-export/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	parameter := flag.String("parameter", "", "metobs parameter key (overrides METOBS_PARAMETER)")
	stations := flag.String("stations", "", `number of stations to harvest or "all" (overrides METOBS_STATION_LIMIT)`)
	out := flag.String("out", "", "workbook path (overrides EXPORT_PATH)")
	listParameters := flag.Bool("list-parameters", false, "print the catalog parameter keys and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if err := applyFlags(cfg, *parameter, *stations, *out); err != nil {
		slog.Error("invalid flags", "error", err)
		return 2
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := metobs.NewClient(metobs.Options{
		BaseURL:    cfg.APIURL,
		Timeout:    cfg.FetchTimeout,
		MaxRetries: cfg.FetchMaxRetries,
		Backoff:    cfg.FetchBackoff,
		MaxBackoff: 16 * cfg.FetchBackoff,

		RequestsPerSecond: cfg.FetchRateLimit,
		Burst:             cfg.FetchConcurrency,
	}, logger, metrics)

	if *listParameters {
		keys, err := client.Parameters(ctx)
		if err != nil {
			logger.Error("list parameters", "error", err)
			return 1
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return 0
	}

	emitter, err := export.NewEmitter(cfg.ExportSheetWidth, logger)
	if err != nil {
		logger.Error("invalid sheet width", "error", err)
		return 1
	}

	harvester := pipeline.NewHarvester(client, pipeline.HarvestOptions{
		Parameter:      cfg.Parameter,
		Period:         cfg.Period,
		StationLimit:   cfg.StationLimit,
		Concurrency:    cfg.FetchConcurrency,
		AbortOnFailure: cfg.FailurePolicy == config.FailurePolicyAbort,
	}, logger, metrics)

	var workbook pipeline.Workbook
	if !cfg.DryRun {
		wb := xlsx.NewWorkbook(cfg.ExportPath, cfg.ExportSheetPrefix, logger)
		defer func() {
			if err := wb.Close(); err != nil {
				logger.Error("workbook close error", "error", err)
			}
		}()
		workbook = wb
	}

	var publisher pipeline.RowPublisher
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("publishing daily rows", "topic", cfg.KafkaTopic)
	}

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, harvester, harvester, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	summary, err := pipeline.New(harvester, emitter, workbook, publisher, logger, metrics).Run(ctx)
	if err != nil {
		logger.Error("pipeline error", "error", err)
		return 1
	}

	for _, f := range summary.Report.Failures {
		logger.Warn("station not exported", "station", f.Station, "reason", f.Reason, "error", f.Err)
	}
	target := cfg.ExportPath
	if summary.DryRun {
		target = "(dry run)"
	}
	logger.Info("harvest finished",
		"run_id", summary.RunID,
		"output", target,
		"stations", summary.Report.Ingested,
		"failed", len(summary.Report.Failures),
		"sheets", summary.Export.Sheets,
		"published", summary.Published,
	)
	return 0
}

// applyFlags overrides cfg with any non-empty flag value and revalidates.
func applyFlags(cfg *config.Config, parameter, stations, out string) error {
	if parameter != "" {
		cfg.Parameter = parameter
		if os.Getenv("EXPORT_SHEET_PREFIX") == "" {
			cfg.ExportSheetPrefix = config.DefaultSheetPrefix(parameter)
		}
	}
	if stations != "" {
		n, err := config.ParseStationLimit(stations)
		if err != nil {
			return fmt.Errorf("-stations: %w", err)
		}
		cfg.StationLimit = n
	}
	if out != "" {
		cfg.ExportPath = out
	}
	return cfg.Validate()
}
