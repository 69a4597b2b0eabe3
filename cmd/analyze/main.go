// Command analyze runs a one-shot flood frequency analysis for a single
// USGS gaging station and prints the results to stdout. It fetches the
// daily discharge record, aggregates annual maxima from approved values,
// and reports the empirical return interval for the given threshold. If a
// fitter URL is provided it also fits a GEV distribution and reports the
// model-based estimate.
//
// Usage:
//
//	go run ./cmd/analyze \
//	  -site 06730200 \
//	  -start 1986-10-01 \
//	  -threshold 5000 \
//	  -fitter-url http://localhost:8100
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mbjoseph/floodfreq/internal/adapter/fitter"
	"github.com/mbjoseph/floodfreq/internal/adapter/usgs"
	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

const dateLayout = "2006-01-02"

func main() {
	site := flag.String("site", "06730200", "USGS site number")
	start := flag.String("start", "1986-10-01", "period start date (YYYY-MM-DD)")
	end := flag.String("end", "", "period end date (YYYY-MM-DD), defaults to today")
	threshold := flag.Float64("threshold", 5000, "discharge threshold in cfs")
	baseURL := flag.String("usgs-url", "https://waterservices.usgs.gov/nwis/dv", "NWIS daily values endpoint")
	fitterURL := flag.String("fitter-url", "", "GEV fitter service URL (empty disables model-based estimation)")
	timeout := flag.Duration("timeout", 60*time.Second, "overall request timeout")
	flag.Parse()

	if err := run(*site, *start, *end, *threshold, *baseURL, *fitterURL, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(site, start, end string, threshold float64, baseURL, fitterURL string, timeout time.Duration) error {
	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	var endDate time.Time
	if end != "" {
		endDate, err = time.Parse(dateLayout, end)
		if err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := usgs.NewClient(baseURL, timeout, metrics, logger)
	observations, err := client.FetchDailySeries(ctx, site, startDate, endDate)
	if err != nil {
		return fmt.Errorf("fetching daily series: %w", err)
	}

	maxima := domain.AnnualMaxima(observations)
	if len(maxima) == 0 {
		return fmt.Errorf("no approved observations for site %s in the requested period", site)
	}

	fmt.Printf("Site %s: %d daily observations, %d years with approved data\n\n", site, len(observations), len(maxima))
	fmt.Println("Annual maxima (cfs):")
	for _, m := range maxima {
		fmt.Printf("  %d  %10.1f\n", m.Year, m.Discharge)
	}
	fmt.Println()

	printEstimate := func(label string, est domain.ReturnIntervalEstimate, err error) {
		var undefined *domain.UndefinedExceedanceError
		switch {
		case errors.As(err, &undefined):
			fmt.Printf("%s: exceedance probability of %.1f cfs is zero, return interval undefined\n", label, threshold)
		case err != nil:
			fmt.Printf("%s: %v\n", label, err)
		default:
			fmt.Printf("%s: P(annual max > %.1f cfs) = %.4f, return interval %.1f years\n",
				label, est.Threshold, est.ExceedanceProb, est.ReturnInterval)
		}
	}

	empirical, err := domain.EmpiricalEstimate(maxima, threshold)
	printEstimate("Empirical", empirical, err)

	if fitterURL == "" {
		return nil
	}

	fitClient := fitter.NewClient(fitterURL, timeout, metrics, logger)
	params, err := fitClient.FitGEV(ctx, domain.Discharges(maxima))
	if err != nil {
		var nonConv *domain.FitNonConvergenceError
		if errors.As(err, &nonConv) {
			fmt.Printf("GEV: fit did not converge: %s\n", nonConv.Message)
			return nil
		}
		return fmt.Errorf("fitting GEV: %w", err)
	}

	fmt.Printf("\nGEV fit: location=%.2f scale=%.2f shape=%.4f\n", params.Location, params.Scale, params.Shape)
	gev, err := domain.GEVEstimate(params, threshold)
	printEstimate("GEV", gev, err)

	return nil
}
