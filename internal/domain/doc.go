// Package domain models USGS stream-discharge records and the
// flood-frequency arithmetic computed over them.
//
// # Data Source
//
// Daily discharge values come from the USGS National Water Information
// System (NWIS) daily-values service, https://waterservices.usgs.gov/nwis/dv.
// The service returns, per site, a JSON time series of daily mean discharge
// (parameter 00060, statistic 00003) in cubic feet per second. The reference
// station for this project is Boulder Creek at North 75th St, Boulder, CO
// (site 06730200), whose September 2013 flood peak motivates the
// return-interval queries.
//
// # NWIS Data Conventions
//
// Qualification codes:
//
//	"A" approved for publication, passed agency review.
//	"P" provisional, subject to revision.
//	"e" estimated (ice cover, equipment malfunction, etc).
//	Only "A" records participate in any analysis here. A qualifier list may
//	carry several codes ("A", "e"); approval is tested by membership.
//
// Missing data:
//
//	NWIS encodes missing values with a per-series noDataValue sentinel
//	(conventionally -999999). The client drops such records at parse time,
//	so domain code never sees them. A calendar year in which every record
//	was missing or unapproved simply has no annual maximum: absent means
//	"no data", never "no flood".
//
// # Flood-Frequency Arithmetic
//
// The annual-maxima series feeds two return-interval estimators:
//
//   - Empirical: the fraction of years whose maximum exceeds a threshold,
//     inverted. Cannot extrapolate beyond the observed record; thresholds
//     above every recorded maximum yield an explicit undefined result
//     rather than an infinity.
//   - Model-based: one minus the fitted GEV distribution's CDF at the
//     threshold, inverted. Fitting is delegated to an external
//     maximum-likelihood service; this package only evaluates the CDF of a
//     fitted parameter triple.
//
// Both estimators are pure functions and report the failure taxonomy in
// errors.go instead of propagating NaN or Inf.
package domain
