package domain

import (
	"errors"
	"fmt"
)

// ErrEmptySeries is returned when an estimator is invoked with no annual
// maxima. It is a deterministic input condition, never retried.
var ErrEmptySeries = errors.New("annual maxima series is empty")

// UndefinedExceedanceError reports an exceedance probability of exactly zero:
// no recorded year exceeded the threshold (empirical), or the threshold sits
// at or beyond the distribution's bounded upper support endpoint (model).
// The return interval 1/0 is undefined and is never reported as infinity.
type UndefinedExceedanceError struct {
	Threshold float64
	Method    string
}

func (e *UndefinedExceedanceError) Error() string {
	return fmt.Sprintf("%s exceedance probability is zero at threshold %g: return interval undefined", e.Method, e.Threshold)
}

// InvalidParametersError reports a GEV parameter triple that violates the
// fitter's invariants, which indicates a fitting failure upstream.
type InvalidParametersError struct {
	Scale float64
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid GEV parameters: scale %g must be strictly positive", e.Scale)
}

// FitNonConvergenceError reports that the external maximum-likelihood fitter
// failed to converge. It is propagated unchanged; the optimization is not
// retried or adjusted here.
type FitNonConvergenceError struct {
	Message string
}

func (e *FitNonConvergenceError) Error() string {
	if e.Message == "" {
		return "GEV fit did not converge"
	}
	return "GEV fit did not converge: " + e.Message
}
