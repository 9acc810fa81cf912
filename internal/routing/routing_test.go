package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostack/mandi-engine/internal/geo"
	"github.com/agrostack/mandi-engine/internal/model"
)

var (
	kottayam = model.Coordinate{Latitude: 9.5916, Longitude: 76.5221}
	palai    = model.Coordinate{Latitude: 9.7118, Longitude: 76.6853}
)

type stubRouter struct {
	leg   Leg
	err   error
	delay time.Duration
	calls int
}

func (s *stubRouter) Route(ctx context.Context, _, _ model.Coordinate) (Leg, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Leg{}, ctx.Err()
		}
	}
	return s.leg, s.err
}

func newEstimator(t *testing.T, r Router) *Estimator {
	t.Helper()
	e, err := NewEstimator(r, DefaultParams())
	require.NoError(t, err)
	return e
}

func TestNewEstimator_InvalidParams(t *testing.T) {
	_, err := NewEstimator(nil, Params{WindingFactor: 0, AverageKmh: 40})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = NewEstimator(nil, Params{WindingFactor: 1.3, AverageKmh: -1})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestEstimateRoute_LivePath(t *testing.T) {
	e := newEstimator(t, &stubRouter{leg: Leg{DistanceKm: 24.5, DurationMinutes: 38}})

	est := e.EstimateRoute(context.Background(), kottayam, palai)
	assert.Equal(t, 24.5, est.DistanceKm)
	assert.Equal(t, 38.0, est.DurationMinutes)
	assert.Equal(t, model.SourceLive, est.Provenance.Source)
}

func TestEstimateRoute_FallbackOnError(t *testing.T) {
	router := &stubRouter{err: errors.New("connection refused")}
	e := newEstimator(t, router)

	est := e.EstimateRoute(context.Background(), kottayam, palai)

	wantKm := geo.Haversine(kottayam, palai) * 1.3
	assert.InDelta(t, wantKm, est.DistanceKm, 1e-9)
	assert.InDelta(t, wantKm/40*60, est.DurationMinutes, 1e-9)
	assert.Equal(t, model.SourceEstimated, est.Provenance.Source)
	assert.Contains(t, est.Provenance.Reason, "connection refused")
	assert.Equal(t, 1, router.calls, "estimator must not retry")
}

func TestEstimateRoute_FallbackOnNegativeLeg(t *testing.T) {
	e := newEstimator(t, &stubRouter{leg: Leg{DistanceKm: -1, DurationMinutes: 5}})

	est := e.EstimateRoute(context.Background(), kottayam, palai)
	assert.Equal(t, model.SourceEstimated, est.Provenance.Source)
	assert.GreaterOrEqual(t, est.DistanceKm, 0.0)
}

func TestEstimateRoute_FallbackOnTimeout(t *testing.T) {
	params := DefaultParams()
	params.Timeout = 10 * time.Millisecond
	e, err := NewEstimator(&stubRouter{delay: time.Second}, params)
	require.NoError(t, err)

	est := e.EstimateRoute(context.Background(), kottayam, palai)
	assert.Equal(t, model.SourceEstimated, est.Provenance.Source)
}

func TestEstimateRoute_NilRouter(t *testing.T) {
	e := newEstimator(t, nil)
	est := e.EstimateRoute(context.Background(), kottayam, kottayam)
	assert.Equal(t, 0.0, est.DistanceKm)
	assert.Equal(t, 0.0, est.DurationMinutes)
	assert.Equal(t, model.SourceEstimated, est.Provenance.Source)
}

func TestEstimateRoute_NonNegative(t *testing.T) {
	e := newEstimator(t, nil)
	points := []model.Coordinate{
		kottayam, palai,
		{Latitude: -33.86, Longitude: 151.21},
		{Latitude: 51.5, Longitude: -0.12},
		{Latitude: 89.9, Longitude: 179.9},
		{Latitude: -89.9, Longitude: -179.9},
	}
	for _, a := range points {
		for _, b := range points {
			est := e.EstimateRoute(context.Background(), a, b)
			assert.GreaterOrEqual(t, est.DistanceKm, 0.0)
			assert.GreaterOrEqual(t, est.DurationMinutes, 0.0)
		}
	}
}

// --- OSRM client ---

func TestOSRMClient_ConvertsUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// lon,lat;lon,lat
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/driving/76.522100,9.591600;76.685300,9.711800"),
			"unexpected path %s", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("overview"))
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":24500,"duration":2280}]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, time.Second)
	leg, err := c.Route(context.Background(), kottayam, palai)
	require.NoError(t, err)
	assert.InDelta(t, 24.5, leg.DistanceKm, 1e-9)
	assert.InDelta(t, 38.0, leg.DurationMinutes, 1e-9)
}

func TestOSRMClient_NonOkCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL, time.Second)
	_, err := c.Route(context.Background(), kottayam, palai)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestOSRMClient_ServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := newEstimator(t, NewOSRMClient(srv.URL, time.Second))
	est := e.EstimateRoute(context.Background(), kottayam, palai)
	assert.Equal(t, model.SourceEstimated, est.Provenance.Source)
	assert.InDelta(t, geo.Haversine(kottayam, palai)*1.3, est.DistanceKm, 1e-9)
}
