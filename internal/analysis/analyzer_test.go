package analysis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbjoseph/floodfreq/internal/analysis"
	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

// --- mocks ---

type mockSource struct {
	observations map[string][]domain.Observation
	err          error
	calls        int
}

func (m *mockSource) FetchDailySeries(_ context.Context, siteNo string, _, _ time.Time) ([]domain.Observation, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.observations[siteNo], nil
}

type mockFitter struct {
	params domain.GEVParameters
	err    error
	values []float64
}

func (m *mockFitter) FitGEV(_ context.Context, values []float64) (domain.GEVParameters, error) {
	m.values = values
	if m.err != nil {
		return domain.GEVParameters{}, m.err
	}
	return m.params, nil
}

type mockPublisher struct {
	published []string
	err       error
}

func (m *mockPublisher) PublishMaxima(_ context.Context, siteNo string, _ []domain.AnnualMaximum, _ time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, siteNo)
	return nil
}

// --- helpers ---

const testSite = "06730200"

func approvedObs(year int, discharge float64) domain.Observation {
	return domain.Observation{
		SiteNo:     testSite,
		Date:       time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
		Discharge:  discharge,
		Qualifiers: []string{"A"},
	}
}

func boulderObservations() []domain.Observation {
	return []domain.Observation{
		approvedObs(2009, 800),
		approvedObs(2010, 1200),
		approvedObs(2011, 1600),
		approvedObs(2012, 2000),
		approvedObs(2013, 3680),
	}
}

func testStations() []domain.Station {
	return []domain.Station{{SiteNo: testSite, Name: "Boulder Creek", Threshold: 5000}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runOnce(t *testing.T, a *analysis.Analyzer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))
}

func newAnalyzer(source domain.SeriesSource, fitter domain.DistributionFitter, publisher domain.MaximaPublisher) *analysis.Analyzer {
	return analysis.New(source, fitter, publisher, testStations(),
		analysis.Period{Start: time.Date(1986, 10, 1, 0, 0, 0, 0, time.UTC)},
		time.Hour, discardLogger(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestAnalyzer_HappyPath(t *testing.T) {
	frozen := time.Date(2019, 10, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	fit := &mockFitter{params: domain.GEVParameters{Location: 1000, Scale: 400, Shape: 0.1}}
	pub := &mockPublisher{}

	a := newAnalyzer(src, fit, pub)
	runOnce(t, a)

	require.NoError(t, a.CheckReadiness(context.Background()))
	assert.Equal(t, []string{testSite}, pub.published)
	assert.Equal(t, []float64{800, 1200, 1600, 2000, 3680}, fit.values)

	maxima, err := a.Maxima(testSite)
	require.NoError(t, err)
	require.Len(t, maxima, 5)
	assert.Equal(t, domain.AnnualMaximum{Year: 2013, Discharge: 3680}, maxima[4])

	statuses := a.Stations()
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Analyzed)
	assert.True(t, statuses[0].ModelAvailable)
	assert.Equal(t, 5, statuses[0].YearCount)
	assert.True(t, statuses[0].ComputedAt.Equal(frozen))
}

func TestAnalyzer_EmpiricalQuery(t *testing.T) {
	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	a := newAnalyzer(src, nil, nil)
	runOnce(t, a)

	est, err := a.ReturnInterval(testSite, 1500, domain.MethodEmpirical)
	require.NoError(t, err)
	assert.Equal(t, 0.4, est.ExceedanceProb)
	assert.Equal(t, 2.5, est.ReturnInterval)

	// beyond the observed record the estimate is explicitly undefined
	_, err = a.ReturnInterval(testSite, 4000, domain.MethodEmpirical)
	var undefined *domain.UndefinedExceedanceError
	require.ErrorAs(t, err, &undefined)
}

func TestAnalyzer_GEVQuery(t *testing.T) {
	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	fit := &mockFitter{params: domain.GEVParameters{Location: 1000, Scale: 400, Shape: 0.1}}

	a := newAnalyzer(src, fit, nil)
	runOnce(t, a)

	est, err := a.ReturnInterval(testSite, 3680, domain.MethodGEV)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodGEV, est.Method)
	assert.InEpsilon(t, 1/est.ExceedanceProb, est.ReturnInterval, 1e-9)
}

func TestAnalyzer_FitNonConvergence(t *testing.T) {
	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	fit := &mockFitter{err: &domain.FitNonConvergenceError{Message: "flat likelihood surface"}}

	a := newAnalyzer(src, fit, nil)
	runOnce(t, a)

	// the station still serves empirical estimates
	_, err := a.ReturnInterval(testSite, 1500, domain.MethodEmpirical)
	require.NoError(t, err)

	_, err = a.ReturnInterval(testSite, 1500, domain.MethodGEV)
	require.ErrorIs(t, err, analysis.ErrModelUnavailable)

	statuses := a.Stations()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].ModelAvailable)
	assert.Contains(t, statuses[0].FitFailure, "flat likelihood surface")
}

func TestAnalyzer_FetchError(t *testing.T) {
	src := &mockSource{err: errors.New("NWIS unreachable")}
	a := newAnalyzer(src, nil, nil)
	runOnce(t, a)

	require.Error(t, a.CheckReadiness(context.Background()))

	_, err := a.Maxima(testSite)
	require.ErrorIs(t, err, analysis.ErrNotAnalyzed)
}

func TestAnalyzer_NoApprovedObservations(t *testing.T) {
	provisional := approvedObs(2013, 3680)
	provisional.Qualifiers = []string{"P"}

	src := &mockSource{observations: map[string][]domain.Observation{testSite: {provisional}}}
	a := newAnalyzer(src, nil, nil)
	runOnce(t, a)

	require.Error(t, a.CheckReadiness(context.Background()))
	_, err := a.Maxima(testSite)
	require.ErrorIs(t, err, analysis.ErrNotAnalyzed)
}

func TestAnalyzer_UnknownStation(t *testing.T) {
	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	a := newAnalyzer(src, nil, nil)
	runOnce(t, a)

	_, err := a.Maxima("99999999")
	require.ErrorIs(t, err, analysis.ErrUnknownStation)

	_, err = a.ReturnInterval("99999999", 1500, domain.MethodEmpirical)
	require.ErrorIs(t, err, analysis.ErrUnknownStation)
}

func TestAnalyzer_UnknownMethod(t *testing.T) {
	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	a := newAnalyzer(src, nil, nil)
	runOnce(t, a)

	_, err := a.ReturnInterval(testSite, 1500, "parametric")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown estimation method")
}

func TestAnalyzer_PublishFailureStillSnapshots(t *testing.T) {
	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	pub := &mockPublisher{err: errors.New("broker down")}

	a := newAnalyzer(src, nil, pub)
	runOnce(t, a)

	require.NoError(t, a.CheckReadiness(context.Background()))
	maxima, err := a.Maxima(testSite)
	require.NoError(t, err)
	assert.Len(t, maxima, 5)
}

func TestAnalyzer_ContextCancellation(t *testing.T) {
	src := &mockSource{observations: map[string][]domain.Observation{testSite: boulderObservations()}}
	a := newAnalyzer(src, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, a.Run(ctx))
	assert.Zero(t, src.calls)
}
