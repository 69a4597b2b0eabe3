package domain

import (
	"context"
	"time"
)

// SeriesSource supplies a station's daily discharge record over a date
// range. A zero end time means "up to now".
type SeriesSource interface {
	FetchDailySeries(ctx context.Context, siteNo string, start, end time.Time) ([]Observation, error)
}

// DistributionFitter estimates GEV parameters from an annual-maxima value
// sequence by maximum likelihood. Implementations must return a
// FitNonConvergenceError when the optimization fails to converge.
type DistributionFitter interface {
	FitGEV(ctx context.Context, values []float64) (GEVParameters, error)
}

// MaximaPublisher delivers a station's derived annual-maxima series to
// downstream consumers.
type MaximaPublisher interface {
	PublishMaxima(ctx context.Context, siteNo string, maxima []AnnualMaximum, computedAt time.Time) error
}
