package fitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbjoseph/floodfreq/internal/domain"
	"github.com/mbjoseph/floodfreq/internal/observability"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_FitGEV_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fit", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req fitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gev", req.Family)
		assert.Equal(t, []float64{800, 1200, 1600, 2000, 3680}, req.Values)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(fitResponse{
			Location: 1243.7, Scale: 497.2, Shape: 0.21,
		}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	params, err := c.FitGEV(context.Background(), []float64{800, 1200, 1600, 2000, 3680})
	require.NoError(t, err)

	assert.Equal(t, 1243.7, params.Location)
	assert.Equal(t, 497.2, params.Scale)
	assert.Equal(t, 0.21, params.Shape)
}

func TestClient_FitGEV_NonConvergence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(fitErrorResponse{Error: "optimization did not converge after 500 iterations"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FitGEV(context.Background(), []float64{1, 1, 1})

	var nonConv *domain.FitNonConvergenceError
	require.ErrorAs(t, err, &nonConv)
	assert.Contains(t, nonConv.Message, "500 iterations")
}

func TestClient_FitGEV_RejectsNonPositiveScale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fitResponse{Location: 1000, Scale: 0, Shape: 0.1})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FitGEV(context.Background(), []float64{800, 1200})

	var invalid *domain.InvalidParametersError
	require.ErrorAs(t, err, &invalid)
}

func TestClient_FitGEV_EmptyValues(t *testing.T) {
	c := testClient("http://unused")
	_, err := c.FitGEV(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestClient_FitGEV_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FitGEV(context.Background(), []float64{800, 1200})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	var nonConv *domain.FitNonConvergenceError
	assert.False(t, errors.As(err, &nonConv), "a 500 is not a non-convergence")
}
