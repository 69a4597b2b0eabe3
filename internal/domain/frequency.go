package domain

import "math"

// shapeZeroTol is the tolerance below which the GEV shape parameter is
// treated as exactly zero and the Gumbel closed form is used. The general
// branch is evaluated through log1p and stays stable for shapes far smaller
// than anything a fitter produces from a decades-long record, so the
// tolerance only guards the division by shape itself.
const shapeZeroTol = 1e-12

// EmpiricalEstimate computes a frequency-based return interval: the fraction
// of recorded annual maxima strictly exceeding the threshold, inverted. A
// year whose maximum equals the threshold exactly does not count as an
// exceedance. The denominator is the number of years present in the series,
// not the calendar span.
//
// Returns ErrEmptySeries for an empty series and UndefinedExceedanceError
// when no recorded year exceeds the threshold; the estimator cannot
// extrapolate beyond the observed record.
func EmpiricalEstimate(maxima []AnnualMaximum, threshold float64) (ReturnIntervalEstimate, error) {
	if len(maxima) == 0 {
		return ReturnIntervalEstimate{}, ErrEmptySeries
	}

	exceeded := 0
	for _, m := range maxima {
		if m.Discharge > threshold {
			exceeded++
		}
	}

	fraction := float64(exceeded) / float64(len(maxima))
	if fraction == 0 {
		return ReturnIntervalEstimate{}, &UndefinedExceedanceError{Threshold: threshold, Method: MethodEmpirical}
	}

	return ReturnIntervalEstimate{
		Threshold:      threshold,
		ExceedanceProb: fraction,
		ReturnInterval: 1 / fraction,
		Method:         MethodEmpirical,
	}, nil
}

// GEVCDF evaluates the generalized extreme value cumulative distribution
// function at x for the fitted parameter triple.
//
// For shape outside [-shapeZeroTol, shapeZeroTol]:
//
//	F(x) = exp(-(1 + shape*(x-location)/scale)^(-1/shape))
//
// computed as exp(-exp(-log1p(shape*z)/shape)) for numerical stability near
// zero shape. Within the tolerance the Gumbel limit applies:
//
//	F(x) = exp(-exp(-(x-location)/scale))
//
// When the base term 1 + shape*z is not positive, x lies outside the
// distribution's support: below the lower bound for positive shape (F = 0),
// at or above the upper bound for negative shape (F = 1). Both boundaries
// are returned explicitly rather than letting NaN propagate.
//
// Returns InvalidParametersError when scale is not strictly positive.
func GEVCDF(params GEVParameters, x float64) (float64, error) {
	if params.Scale <= 0 {
		return 0, &InvalidParametersError{Scale: params.Scale}
	}

	z := (x - params.Location) / params.Scale
	if math.Abs(params.Shape) < shapeZeroTol {
		return math.Exp(-math.Exp(-z)), nil
	}

	if 1+params.Shape*z <= 0 {
		if params.Shape > 0 {
			return 0, nil
		}
		return 1, nil
	}

	return math.Exp(-math.Exp(-math.Log1p(params.Shape*z) / params.Shape)), nil
}

// GEVEstimate computes a model-based return interval from a fitted parameter
// triple: the GEV exceedance probability 1 - F(threshold), inverted.
//
// Returns UndefinedExceedanceError when the exceedance probability is exactly
// zero, which occurs only when the threshold reaches the finite upper support
// endpoint of a negative-shape fit. An exceedance probability of exactly one
// (threshold at the lower support boundary) is valid and yields a return
// interval of one year.
func GEVEstimate(params GEVParameters, threshold float64) (ReturnIntervalEstimate, error) {
	cdf, err := GEVCDF(params, threshold)
	if err != nil {
		return ReturnIntervalEstimate{}, err
	}

	exceedance := 1 - cdf
	if exceedance == 0 {
		return ReturnIntervalEstimate{}, &UndefinedExceedanceError{Threshold: threshold, Method: MethodGEV}
	}

	return ReturnIntervalEstimate{
		Threshold:      threshold,
		ExceedanceProb: exceedance,
		ReturnInterval: 1 / exceedance,
		Method:         MethodGEV,
	}, nil
}
