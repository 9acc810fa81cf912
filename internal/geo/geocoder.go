package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
)

// ErrNotFound is returned when a query cannot be resolved to a coordinate.
// Upstream failures are reported as ErrNotFound too; no coordinate can be
// fabricated for them.
var ErrNotFound = errors.New("geo: location not found")

// Place is a geocoded location.
type Place struct {
	Coordinate  model.Coordinate `json:"coordinates"`
	DisplayName string           `json:"display_name"`
}

// Geocoder resolves free-text locations.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Place, error)
}

// NominatimClient geocodes against a Nominatim-compatible search API.
// It makes exactly one request per call and takes the first result.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatimClient creates a geocoder. timeout bounds each lookup.
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration) *NominatimClient {
	return &NominatimClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves query to its highest-relevance match.
func (c *NominatimClient) Geocode(ctx context.Context, query string) (*Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: location query is required", crop.ErrInvalidInput)
	}

	start := time.Now()
	results, err := c.search(ctx, query)
	if err != nil {
		metrics.ObserveUpstream("geocoder", metrics.OutcomeError, start)
		slog.Warn("geocoding failed", "query", query, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	if len(results) == 0 {
		metrics.ObserveUpstream("geocoder", metrics.OutcomeEmpty, start)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	metrics.ObserveUpstream("geocoder", metrics.OutcomeOK, start)

	first := results[0]
	lat, errLat := strconv.ParseFloat(first.Lat, 64)
	lon, errLon := strconv.ParseFloat(first.Lon, 64)
	if errLat != nil || errLon != nil {
		slog.Warn("geocoder returned unparseable coordinates", "query", query, "lat", first.Lat, "lon", first.Lon)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, query)
	}

	return &Place{
		Coordinate:  model.Coordinate{Latitude: lat, Longitude: lon},
		DisplayName: first.DisplayName,
	}, nil
}

func (c *NominatimClient) search(ctx context.Context, query string) ([]nominatimResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(res.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return results, nil
}
