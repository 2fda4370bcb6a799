package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/metobs-export/internal/domain"
	"github.com/couchcryptid/metobs-export/internal/export"
	"github.com/couchcryptid/metobs-export/internal/observability"
)

// Workbook is a SheetWriter that can be persisted.
type Workbook interface {
	export.SheetWriter
	Save() error
}

// RowPublisher sends daily rows downstream.
type RowPublisher interface {
	PublishRows(ctx context.Context, rows []domain.DailyRow) error
}

// Summary is the outcome of one run.
type Summary struct {
	RunID     string
	Report    Report
	Export    export.Stats
	Published int
	DryRun    bool
}

// Runner orchestrates harvest, export and the optional publish step.
type Runner struct {
	harvester *Harvester
	emitter   *export.Emitter
	workbook  Workbook
	publisher RowPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Runner. A nil workbook selects a dry run that records the
// write instructions in memory; a nil publisher disables publishing.
func New(h *Harvester, e *export.Emitter, wb Workbook, pub RowPublisher, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		harvester: h,
		emitter:   e,
		workbook:  wb,
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run harvests into a fresh matrix, freezes it and exports it.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	logger.Info("pipeline started", "parameter", r.harvester.Parameter(), "dry_run", r.workbook == nil)
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	matrix := domain.NewMatrix()
	report, err := r.harvester.Harvest(ctx, matrix)
	summary := Summary{RunID: runID, Report: report, DryRun: r.workbook == nil}
	if err != nil {
		return summary, fmt.Errorf("harvest: %w", err)
	}

	matrix.Freeze()
	keys := matrix.Keys()

	start := time.Now()
	var w export.SheetWriter = r.workbook
	if r.workbook == nil {
		w = &export.Recorder{}
	}
	stats, err := r.emitter.Emit(w, keys, matrix)
	summary.Export = stats
	if err != nil {
		return summary, fmt.Errorf("export: %w", err)
	}
	if r.workbook != nil {
		if err := r.workbook.Save(); err != nil {
			return summary, err
		}
	}
	r.metrics.ExportDuration.Observe(time.Since(start).Seconds())
	r.metrics.SheetsWritten.Set(float64(stats.Sheets))
	r.metrics.CellsWritten.Add(float64(stats.Cells))
	logger.Info("export complete",
		"sheets", stats.Sheets,
		"stations", len(keys.Stations),
		"dates", len(keys.Dates),
		"cells", stats.Cells,
	)

	if r.publisher != nil && len(keys.Dates) > 0 {
		rows := domain.BuildDailyRows(runID, r.harvester.Parameter(), keys, matrix)
		if err := r.publisher.PublishRows(ctx, rows); err != nil {
			return summary, fmt.Errorf("publish rows: %w", err)
		}
		summary.Published = len(rows)
		r.metrics.RowsPublished.Add(float64(len(rows)))
		logger.Info("rows published", "rows", len(rows))
	}

	return summary, nil
}
