package domain

import (
	"slices"
	"time"
)

// QualifierApproved is the USGS qualification code for records that passed
// agency review. Only approved observations participate in any analysis;
// provisional ("P") and estimated ("e") records are rejected.
const QualifierApproved = "A"

// Estimation methods accepted by return-interval queries.
const (
	MethodEmpirical = "empirical"
	MethodGEV       = "gev"
)

// Station identifies a stream gage in the analysis catalog.
type Station struct {
	SiteNo string `json:"site_no" yaml:"site_no"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`

	// Threshold is an optional discharge of interest in cfs, e.g. the peak
	// of a flood event the station's operators want tracked.
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// Observation is a single daily discharge record for one station.
type Observation struct {
	SiteNo     string
	Date       time.Time
	Discharge  float64 // cubic feet per second
	Qualifiers []string
}

// Approved reports whether the observation carries the approved
// qualification code.
func (o Observation) Approved() bool {
	return slices.Contains(o.Qualifiers, QualifierApproved)
}

// AnnualMaximum is the largest approved discharge observed at a station in
// one calendar year. Years with no approved observations have no entry.
type AnnualMaximum struct {
	Year      int     `json:"year"`
	Discharge float64 `json:"discharge"`
}

// GEVParameters is a fitted generalized extreme value parameter triple.
// Scale must be strictly positive; the fitter is responsible for that
// invariant and the CDF evaluator rejects violations.
type GEVParameters struct {
	Location float64 `json:"location"`
	Scale    float64 `json:"scale"`
	Shape    float64 `json:"shape"`
}

// ReturnIntervalEstimate answers a single threshold query. It is derived on
// demand and never stored.
type ReturnIntervalEstimate struct {
	Threshold      float64 `json:"threshold"`
	ExceedanceProb float64 `json:"exceedance_probability"`
	ReturnInterval float64 `json:"return_interval_years"`
	Method         string  `json:"method"`
}
