package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/metobs-export/internal/domain"
	"github.com/couchcryptid/metobs-export/internal/observability"
)

// Catalog resolves stations, their periods and their data exports.
type Catalog interface {
	Stations(ctx context.Context, parameter string) ([]domain.Station, error)
	Periods(ctx context.Context, parameter string, station domain.StationKey) ([]string, error)
	StationData(ctx context.Context, parameter string, station domain.StationKey, period string) (io.ReadCloser, error)
}

// Failure reasons used in reports and metric labels.
const (
	ReasonFetch     = "fetch"
	ReasonMalformed = "malformed"
)

// HarvestOptions selects what to harvest and how.
type HarvestOptions struct {
	Parameter      string
	Period         string // only stations offering this period are ingested
	StationLimit   int    // first N catalog stations; 0 means all
	Concurrency    int
	AbortOnFailure bool
}

// StationFailure records why one station was not ingested.
type StationFailure struct {
	Station domain.StationKey
	Reason  string
	Err     error
}

// Report summarizes a harvest.
type Report struct {
	Discovered int
	Qualified  int
	Ingested   int
	Readings   int
	Failures   []StationFailure
}

// Harvester fetches every qualifying station of a parameter and records its
// series into a matrix.
type Harvester struct {
	catalog Catalog
	opts    HarvestOptions
	logger  *slog.Logger
	metrics *observability.Metrics

	ready      atomic.Bool
	discovered atomic.Int64
	qualified  atomic.Int64
	ingested   atomic.Int64
	failed     atomic.Int64
}

// NewHarvester creates a Harvester. Concurrency below one is treated as one.
func NewHarvester(c Catalog, opts HarvestOptions, logger *slog.Logger, metrics *observability.Metrics) *Harvester {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Harvester{catalog: c, opts: opts, logger: logger, metrics: metrics}
}

// Parameter returns the harvested parameter key.
func (h *Harvester) Parameter() string { return h.opts.Parameter }

// CheckReadiness returns nil once the station catalog has been resolved.
func (h *Harvester) CheckReadiness(_ context.Context) error {
	if !h.ready.Load() {
		return errors.New("station catalog not resolved yet")
	}
	return nil
}

// ProgressSnapshot returns the station counters of the current run.
func (h *Harvester) ProgressSnapshot() map[string]int64 {
	return map[string]int64{
		"discovered": h.discovered.Load(),
		"qualified":  h.qualified.Load(),
		"ingested":   h.ingested.Load(),
		"failed":     h.failed.Load(),
	}
}

// Harvest records every qualifying station into m. Stations are fetched and
// parsed concurrently; each station's series is committed in one step only
// after it parsed completely, so a failing station never leaves partial data.
// With AbortOnFailure the first station failure cancels the run; otherwise
// failures are reported and the remaining stations continue.
func (h *Harvester) Harvest(ctx context.Context, m *domain.Matrix) (Report, error) {
	stations, err := h.catalog.Stations(ctx, h.opts.Parameter)
	if err != nil {
		return Report{}, fmt.Errorf("list stations for parameter %s: %w", h.opts.Parameter, err)
	}
	if h.opts.StationLimit > 0 && h.opts.StationLimit < len(stations) {
		stations = stations[:h.opts.StationLimit]
	}
	h.ready.Store(true)
	h.discovered.Store(int64(len(stations)))
	h.metrics.StationsDiscovered.Add(float64(len(stations)))
	h.logger.Info("stations discovered",
		"parameter", h.opts.Parameter,
		"stations", len(stations),
		"period", h.opts.Period,
		"concurrency", h.opts.Concurrency,
	)

	var (
		mu     sync.Mutex
		report = Report{Discovered: len(stations)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Concurrency)
	for i, st := range stations {
		g.Go(func() error {
			readings, qualified, ferr := h.harvestStation(gctx, st, m)

			mu.Lock()
			defer mu.Unlock()
			if qualified {
				report.Qualified++
			}
			if ferr == nil {
				if qualified {
					report.Ingested++
					report.Readings += readings
					h.logger.Info("station ingested",
						"station", st.Key,
						"name", st.Name,
						"position", i+1,
						"of", len(stations),
						"readings", readings,
					)
				}
				return nil
			}
			// Cancelled runs and a frozen matrix are not station failures.
			if gctx.Err() != nil || errors.Is(ferr, domain.ErrMatrixFrozen) {
				return ferr
			}

			reason := ReasonFetch
			if errors.Is(ferr, domain.ErrMalformedRecord) {
				reason = ReasonMalformed
			}
			report.Failures = append(report.Failures, StationFailure{Station: st.Key, Reason: reason, Err: ferr})
			h.failed.Add(1)
			h.metrics.StationFailures.WithLabelValues(reason).Inc()

			if h.opts.AbortOnFailure {
				return fmt.Errorf("station %s: %w", st.Key, ferr)
			}
			h.logger.Warn("station skipped", "station", st.Key, "reason", reason, "error", ferr)
			return nil
		})
	}
	err = g.Wait()

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Station < report.Failures[j].Station })
	if err != nil {
		return report, err
	}

	if report.Qualified == 0 {
		h.logger.Info("no qualifying stations", "parameter", h.opts.Parameter, "period", h.opts.Period)
	}
	h.logger.Info("harvest complete",
		"discovered", report.Discovered,
		"qualified", report.Qualified,
		"ingested", report.Ingested,
		"failed", len(report.Failures),
		"readings", report.Readings,
	)
	return report, nil
}

// harvestStation fetches and records one station. It reports whether the
// station offers the qualifying period.
func (h *Harvester) harvestStation(ctx context.Context, st domain.Station, m *domain.Matrix) (int, bool, error) {
	periods, err := h.catalog.Periods(ctx, h.opts.Parameter, st.Key)
	if err != nil {
		return 0, false, fmt.Errorf("list periods: %w", err)
	}
	if !slices.Contains(periods, h.opts.Period) {
		h.logger.Debug("station has no qualifying period", "station", st.Key, "periods", periods)
		return 0, false, nil
	}
	h.qualified.Add(1)
	h.metrics.StationsQualified.Inc()

	rc, err := h.catalog.StationData(ctx, h.opts.Parameter, st.Key, h.opts.Period)
	if err != nil {
		return 0, true, fmt.Errorf("fetch data: %w", err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			h.logger.Debug("close station data", "station", st.Key, "error", cerr)
		}
	}()
	series, err := domain.ParseStationSeries(st.Key, rc)
	if err != nil {
		return 0, true, err
	}

	if err := m.RecordSeries(series); err != nil {
		return 0, true, err
	}
	h.ingested.Add(1)
	h.metrics.StationsIngested.Inc()
	h.metrics.ReadingsRecorded.Add(float64(len(series.Readings)))
	return len(series.Readings), true, nil
}
