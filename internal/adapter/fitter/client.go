// Package fitter is the HTTP adapter for the external GEV
// maximum-likelihood fitting service. Parameter estimation is never done
// in-process; this client sends an annual-maxima value sequence to the
// sidecar and consumes the fitted triple it returns.
package fitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

// Client implements domain.DistributionFitter against the fitter sidecar's
// POST /fit endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a fitter service client.
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

type fitRequest struct {
	Family string    `json:"family"`
	Values []float64 `json:"values"`
}

type fitResponse struct {
	Location float64 `json:"location"`
	Scale    float64 `json:"scale"`
	Shape    float64 `json:"shape"`
}

type fitErrorResponse struct {
	Error string `json:"error"`
}

// FitGEV estimates GEV parameters for the given annual-maxima values.
//
// A 422 from the service means the optimization did not converge and maps to
// a FitNonConvergenceError carrying the service's message. A converged fit
// with a non-positive scale violates the fitter contract and is rejected as
// InvalidParametersError rather than passed downstream.
func (c *Client) FitGEV(ctx context.Context, values []float64) (domain.GEVParameters, error) {
	if len(values) == 0 {
		return domain.GEVParameters{}, domain.ErrEmptySeries
	}

	body, err := json.Marshal(fitRequest{Family: "gev", Values: values})
	if err != nil {
		return domain.GEVParameters{}, fmt.Errorf("encode fit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fit", bytes.NewReader(body))
	if err != nil {
		return domain.GEVParameters{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FitRequests.WithLabelValues("error").Inc()
		return domain.GEVParameters{}, fmt.Errorf("fit request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusUnprocessableEntity:
		c.metrics.FitRequests.WithLabelValues("non_convergence").Inc()
		var fitErr fitErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&fitErr); err != nil {
			return domain.GEVParameters{}, &domain.FitNonConvergenceError{}
		}
		return domain.GEVParameters{}, &domain.FitNonConvergenceError{Message: fitErr.Error}
	default:
		c.metrics.FitRequests.WithLabelValues("error").Inc()
		respBody, _ := io.ReadAll(resp.Body)
		return domain.GEVParameters{}, fmt.Errorf("fitter API error: status %d: %s", resp.StatusCode, respBody)
	}

	var fitted fitResponse
	if err := json.NewDecoder(resp.Body).Decode(&fitted); err != nil {
		c.metrics.FitRequests.WithLabelValues("error").Inc()
		return domain.GEVParameters{}, fmt.Errorf("decode fit response: %w", err)
	}

	if fitted.Scale <= 0 {
		c.metrics.FitRequests.WithLabelValues("error").Inc()
		return domain.GEVParameters{}, &domain.InvalidParametersError{Scale: fitted.Scale}
	}

	c.metrics.FitRequests.WithLabelValues("success").Inc()
	c.logger.Debug("GEV fit complete",
		"n", len(values),
		"location", fitted.Location,
		"scale", fitted.Scale,
		"shape", fitted.Shape,
	)

	return domain.GEVParameters{
		Location: fitted.Location,
		Scale:    fitted.Scale,
		Shape:    fitted.Shape,
	}, nil
}
