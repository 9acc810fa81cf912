package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
)

// OSRMClient queries an OSRM-compatible /route/v1/driving endpoint.
type OSRMClient struct {
	baseURL string
	client  *http.Client
}

// NewOSRMClient creates a router client. timeout bounds each request.
func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// Route returns the driving distance in km and duration in minutes.
func (c *OSRMClient) Route(ctx context.Context, origin, destination model.Coordinate) (Leg, error) {
	start := time.Now()
	leg, err := c.route(ctx, origin, destination)
	if err != nil {
		metrics.ObserveUpstream("router", metrics.OutcomeError, start)
		return Leg{}, err
	}
	metrics.ObserveUpstream("router", metrics.OutcomeOK, start)
	return leg, nil
}

func (c *OSRMClient) route(ctx context.Context, origin, destination model.Coordinate) (Leg, error) {
	// OSRM takes lon,lat pairs.
	addr := fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=false",
		c.baseURL,
		formatDegrees(origin.Longitude), formatDegrees(origin.Latitude),
		formatDegrees(destination.Longitude), formatDegrees(destination.Latitude),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return Leg{}, fmt.Errorf("build request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return Leg{}, fmt.Errorf("get response: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Leg{}, fmt.Errorf("%w: status %d", ErrNoRoute, res.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Leg{}, fmt.Errorf("decode body: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return Leg{}, fmt.Errorf("%w: code %q", ErrNoRoute, body.Code)
	}

	return Leg{
		DistanceKm:      body.Routes[0].Distance / 1000,
		DurationMinutes: body.Routes[0].Duration / 60,
	}, nil
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
