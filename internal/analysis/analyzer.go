package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

// Query errors surfaced to the HTTP layer.
var (
	ErrUnknownStation   = errors.New("unknown station")
	ErrNotAnalyzed      = errors.New("station has not been analyzed yet")
	ErrModelUnavailable = errors.New("no fitted GEV model available for station")
)

// Period is the analysis date range. A zero End means "up to now" at fetch time.
type Period struct {
	Start time.Time
	End   time.Time
}

// Snapshot is the completed analysis state for one station. Snapshots are
// immutable once stored; a refresh swaps in a new one.
type Snapshot struct {
	Station    domain.Station
	Maxima     []domain.AnnualMaximum
	Params     *domain.GEVParameters // nil when fitting is disabled or failed
	FitFailure string                // last fit failure message, empty on success
	ComputedAt time.Time
}

// StationStatus summarizes a catalog entry for the stations listing.
type StationStatus struct {
	Station        domain.Station `json:"station"`
	Analyzed       bool           `json:"analyzed"`
	YearCount      int            `json:"year_count,omitempty"`
	ModelAvailable bool           `json:"model_available"`
	FitFailure     string         `json:"fit_failure,omitempty"`
	ComputedAt     time.Time      `json:"computed_at,omitzero"`
}

// Analyzer runs the per-station fetch-reduce-fit cycle and serves
// return-interval queries from the resulting snapshots. Station pipelines
// are independent; only the snapshot map is shared, behind a lock.
type Analyzer struct {
	source    domain.SeriesSource
	fitter    domain.DistributionFitter // nil disables model-based estimation
	publisher domain.MaximaPublisher    // nil disables publishing
	stations  []domain.Station
	period    Period
	refresh   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	ready     atomic.Bool
}

// New creates an Analyzer. Pass a nil fitter to disable model-based
// estimation and a nil publisher to disable Kafka output.
func New(source domain.SeriesSource, fitter domain.DistributionFitter, publisher domain.MaximaPublisher,
	stations []domain.Station, period Period, refresh time.Duration,
	logger *slog.Logger, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{
		source:    source,
		fitter:    fitter,
		publisher: publisher,
		stations:  stations,
		period:    period,
		refresh:   refresh,
		logger:    logger,
		metrics:   metrics,
		snapshots: make(map[string]*Snapshot),
	}
}

// CheckReadiness returns nil once at least one station has an analysis
// snapshot, or an error describing why the service is not yet ready.
func (a *Analyzer) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("no station has been analyzed yet")
	}
	return nil
}

// Run executes the analysis cycle for every station, then repeats on the
// refresh interval until the context is cancelled.
func (a *Analyzer) Run(ctx context.Context) error {
	a.logger.Info("analyzer started",
		"stations", len(a.stations),
		"refresh_interval", a.refresh,
		"fitter_enabled", a.fitter != nil,
		"publisher_enabled", a.publisher != nil,
	)
	a.metrics.AnalyzerRunning.Set(1)
	defer a.metrics.AnalyzerRunning.Set(0)

	for {
		a.analyzeAll(ctx)

		if !sleepWithContext(ctx, a.refresh) {
			a.logger.Info("analyzer stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// analyzeAll runs one cycle over the catalog, stopping early on cancellation.
func (a *Analyzer) analyzeAll(ctx context.Context) {
	for _, station := range a.stations {
		if ctx.Err() != nil {
			return
		}
		a.analyzeStation(ctx, station)
	}
}

// analyzeStation runs the full cycle for one station. Failures leave any
// previous snapshot in place so queries keep serving the last good analysis.
func (a *Analyzer) analyzeStation(ctx context.Context, station domain.Station) {
	start := time.Now()

	observations, err := a.source.FetchDailySeries(ctx, station.SiteNo, a.period.Start, a.period.End)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Error("fetch daily series failed", "site_no", station.SiteNo, "error", err)
		a.metrics.AnalysesTotal.WithLabelValues("fetch_error").Inc()
		return
	}

	rejected := 0
	for _, o := range observations {
		if !o.Approved() {
			rejected++
		}
	}
	a.metrics.ObservationsRejected.Add(float64(rejected))

	maxima := domain.AnnualMaxima(observations)
	if len(maxima) == 0 {
		a.logger.Warn("no approved observations in period, skipping station",
			"site_no", station.SiteNo, "fetched", len(observations))
		a.metrics.AnalysesTotal.WithLabelValues("empty").Inc()
		return
	}

	computedAt := domain.Now()

	if a.publisher != nil {
		if err := a.publisher.PublishMaxima(ctx, station.SiteNo, maxima, computedAt); err != nil {
			// Publishing is best-effort; the snapshot still updates.
			a.logger.Warn("publish annual maxima failed", "site_no", station.SiteNo, "error", err)
		} else {
			a.metrics.MaximaPublished.Inc()
		}
	}

	snapshot := &Snapshot{
		Station:    station,
		Maxima:     maxima,
		ComputedAt: computedAt,
	}

	if a.fitter != nil {
		params, err := a.fitter.FitGEV(ctx, domain.Discharges(maxima))
		switch {
		case err == nil:
			snapshot.Params = &params
		case ctx.Err() != nil:
			return
		default:
			// Non-convergence and other fit failures degrade to
			// empirical-only service for this station.
			a.logger.Error("GEV fit failed", "site_no", station.SiteNo, "years", len(maxima), "error", err)
			snapshot.FitFailure = err.Error()
		}
	}

	a.mu.Lock()
	a.snapshots[station.SiteNo] = snapshot
	a.mu.Unlock()
	a.ready.Store(true)

	a.metrics.AnalysesTotal.WithLabelValues("success").Inc()
	a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	a.logger.Info("station analyzed",
		"site_no", station.SiteNo,
		"observations", len(observations),
		"rejected", rejected,
		"years", len(maxima),
		"model_available", snapshot.Params != nil,
	)
}

// Stations reports the catalog with per-station analysis status, ordered by
// site number.
func (a *Analyzer) Stations() []StationStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	statuses := make([]StationStatus, 0, len(a.stations))
	for _, station := range a.stations {
		status := StationStatus{Station: station}
		if snap, ok := a.snapshots[station.SiteNo]; ok {
			status.Analyzed = true
			status.YearCount = len(snap.Maxima)
			status.ModelAvailable = snap.Params != nil
			status.FitFailure = snap.FitFailure
			status.ComputedAt = snap.ComputedAt
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Station.SiteNo < statuses[j].Station.SiteNo
	})
	return statuses
}

// Maxima returns the annual-maxima series for a station.
func (a *Analyzer) Maxima(siteNo string) ([]domain.AnnualMaximum, error) {
	snap, err := a.snapshot(siteNo)
	if err != nil {
		return nil, err
	}
	return snap.Maxima, nil
}

// ReturnInterval answers a threshold query against a station's snapshot with
// the requested estimation method. Domain error conditions (undefined
// exceedance, empty series) pass through untouched for the caller to present.
func (a *Analyzer) ReturnInterval(siteNo string, threshold float64, method string) (domain.ReturnIntervalEstimate, error) {
	snap, err := a.snapshot(siteNo)
	if err != nil {
		return domain.ReturnIntervalEstimate{}, err
	}

	switch method {
	case domain.MethodEmpirical:
		return domain.EmpiricalEstimate(snap.Maxima, threshold)
	case domain.MethodGEV:
		if snap.Params == nil {
			return domain.ReturnIntervalEstimate{}, ErrModelUnavailable
		}
		return domain.GEVEstimate(*snap.Params, threshold)
	default:
		return domain.ReturnIntervalEstimate{}, fmt.Errorf("unknown estimation method %q", method)
	}
}

// snapshot resolves a site number to its analysis snapshot, distinguishing
// stations outside the catalog from stations not yet analyzed.
func (a *Analyzer) snapshot(siteNo string) (*Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if snap, ok := a.snapshots[siteNo]; ok {
		return snap, nil
	}
	for _, station := range a.stations {
		if station.SiteNo == siteNo {
			return nil, ErrNotAnalyzed
		}
	}
	return nil, ErrUnknownStation
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
