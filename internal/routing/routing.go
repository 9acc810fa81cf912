// Package routing estimates road distance and travel time between two
// coordinates. A network router is tried first; when it is unavailable the
// estimator degrades to a haversine-based approximation and never fails.
package routing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agrostack/mandi-engine/internal/geo"
	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
)

var (
	// ErrNoRoute is returned by a Router that answered without a usable route.
	ErrNoRoute = errors.New("routing: no route")

	// ErrInvalidParams is returned for non-positive winding factor or speed.
	ErrInvalidParams = errors.New("routing: winding factor and average speed must be positive")
)

// Default approximation parameters.
const (
	DefaultWindingFactor = 1.3
	DefaultAverageKmh    = 40.0
)

// Leg is a raw router answer.
type Leg struct {
	DistanceKm      float64
	DurationMinutes float64
}

// Router queries a routing provider for driving distance and duration.
type Router interface {
	Route(ctx context.Context, origin, destination model.Coordinate) (Leg, error)
}

// Params tunes the analytic fallback.
type Params struct {
	WindingFactor float64       // road distance / great-circle distance
	AverageKmh    float64       // assumed average road speed
	Timeout       time.Duration // per-call bound on the router; 0 = caller's context only
}

// DefaultParams returns the documented fallback parameters.
func DefaultParams() Params {
	return Params{
		WindingFactor: DefaultWindingFactor,
		AverageKmh:    DefaultAverageKmh,
	}
}

// Estimator implements the two-tier route estimate.
type Estimator struct {
	router Router
	params Params
}

// NewEstimator creates an estimator. router may be nil, in which case every
// estimate uses the approximation.
func NewEstimator(router Router, params Params) (*Estimator, error) {
	if params.WindingFactor <= 0 || params.AverageKmh <= 0 {
		return nil, ErrInvalidParams
	}
	return &Estimator{router: router, params: params}, nil
}

// EstimateRoute returns the routed distance/duration, or the approximation
// if the router fails, times out or returns nonsense.
func (e *Estimator) EstimateRoute(ctx context.Context, origin, destination model.Coordinate) model.RouteEstimate {
	if e.router == nil {
		return e.approximate(origin, destination, "no router configured")
	}

	callCtx := ctx
	if e.params.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.params.Timeout)
		defer cancel()
	}

	leg, err := e.router.Route(callCtx, origin, destination)
	if err == nil && (leg.DistanceKm < 0 || leg.DurationMinutes < 0) {
		err = ErrNoRoute
	}
	if err != nil {
		slog.Warn("routing unavailable, using approximation",
			"origin", origin, "destination", destination, "err", err)
		return e.approximate(origin, destination, err.Error())
	}

	return model.RouteEstimate{
		DistanceKm:      leg.DistanceKm,
		DurationMinutes: leg.DurationMinutes,
		Provenance:      model.Live(),
	}
}

func (e *Estimator) approximate(origin, destination model.Coordinate, reason string) model.RouteEstimate {
	metrics.Fallbacks.WithLabelValues("routing").Inc()
	est := Approximate(origin, destination, e.params.WindingFactor, e.params.AverageKmh)
	est.Provenance = model.Estimated(reason)
	return est
}

// Approximate returns haversine × windingFactor as road distance and derives
// duration from averageKmh.
func Approximate(origin, destination model.Coordinate, windingFactor, averageKmh float64) model.RouteEstimate {
	road := geo.Haversine(origin, destination) * windingFactor
	return model.RouteEstimate{
		DistanceKm:      road,
		DurationMinutes: road / averageKmh * 60,
		Provenance:      model.Estimated(""),
	}
}
