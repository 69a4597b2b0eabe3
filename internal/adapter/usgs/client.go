package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

// NWIS parameter and statistic codes for daily mean discharge.
const (
	parameterDischarge = "00060"
	statisticDailyMean = "00003"
)

const dateLayout = "2006-01-02"

// Client fetches daily discharge series from the USGS NWIS daily-values API.
// It implements domain.SeriesSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an NWIS daily-values client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchDailySeries retrieves the daily mean discharge record for one site
// over [start, end]. A zero end means "up to today". Records carrying the
// series noDataValue are dropped at parse time.
func (c *Client) FetchDailySeries(ctx context.Context, siteNo string, start, end time.Time) ([]domain.Observation, error) {
	if end.IsZero() {
		end = domain.Now()
	}

	params := url.Values{
		"format":      {"json"},
		"sites":       {siteNo},
		"startDT":     {start.Format(dateLayout)},
		"endDT":       {end.Format(dateLayout)},
		"parameterCd": {parameterDischarge},
		"statCd":      {statisticDailyMean},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch daily values for site %s: %w", siteNo, err)
	}
	defer resp.Body.Close()
	c.metrics.USGSRequestDuration.Observe(time.Since(requestStart).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("NWIS API error: status %d: %s", resp.StatusCode, body)
	}

	var nwisResp response
	if err := json.NewDecoder(resp.Body).Decode(&nwisResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(nwisResp.Value.TimeSeries) == 0 {
		return nil, fmt.Errorf("NWIS returned no discharge series for site %s", siteNo)
	}

	return c.parseSeries(siteNo, nwisResp.Value.TimeSeries[0]), nil
}

// parseSeries flattens one NWIS time series into domain observations,
// skipping malformed and no-data records.
func (c *Client) parseSeries(siteNo string, series timeSeries) []domain.Observation {
	var observations []domain.Observation
	for _, block := range series.Values {
		for _, rec := range block.Value {
			discharge, err := strconv.ParseFloat(rec.Value, 64)
			if err != nil {
				c.logger.Warn("skipping unparseable discharge value",
					"site_no", siteNo, "value", rec.Value, "date", rec.DateTime)
				continue
			}
			if discharge == series.Variable.NoDataValue {
				continue
			}
			date, err := parseNWISDate(rec.DateTime)
			if err != nil {
				c.logger.Warn("skipping unparseable record date",
					"site_no", siteNo, "date", rec.DateTime)
				continue
			}
			observations = append(observations, domain.Observation{
				SiteNo:     siteNo,
				Date:       date,
				Discharge:  discharge,
				Qualifiers: rec.Qualifiers,
			})
		}
	}
	return observations
}

// parseNWISDate accepts the daily-values timestamp format, which carries a
// milliseconds field but no zone, with a date-only fallback.
func parseNWISDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05.000", s); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, s)
}

// NWIS daily-values response types, reduced to the fields consumed here.

type response struct {
	Value struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	Variable struct {
		NoDataValue float64 `json:"noDataValue"`
	} `json:"variable"`
	Values []struct {
		Value []record `json:"value"`
	} `json:"values"`
}

type record struct {
	Value      string   `json:"value"`
	Qualifiers []string `json:"qualifiers"`
	DateTime   string   `json:"dateTime"`
}
