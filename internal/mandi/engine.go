// Package mandi ranks candidate markets for a crop by net profit per unit
// after road transport. Candidate prices come from the price provider and
// road distances from the route estimator; both degrade instead of failing,
// so the only errors returned here are input validation errors.
package mandi

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/geo"
	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
)

// Defaults.
const (
	DefaultCostPerKmPerUnit = 0.5
	DefaultMaxRouted        = 5
)

// CandidateSource supplies priced candidate markets for a crop.
type CandidateSource interface {
	CandidateMarkets(ctx context.Context, cropName string) model.CandidateSet
}

// RouteEstimator returns a road distance and duration. It never fails.
type RouteEstimator interface {
	EstimateRoute(ctx context.Context, origin, destination model.Coordinate) model.RouteEstimate
}

// Config tunes the engine.
type Config struct {
	CostPerKmPerUnit float64 // transport rate per km per unit
	MaxRouted        int     // nearest candidates sent to the router
}

// FallbackMarkets is the minimal set ranked when no candidate market has a
// known location.
func FallbackMarkets() []model.MarketCandidate {
	return []model.MarketCandidate{
		{MarketName: "Kanjirappally APMC", Coordinate: model.Coordinate{Latitude: 9.5544, Longitude: 76.7869}, Price: decimal.RequireFromString("188.5")},
		{MarketName: "Kottayam APMC", Coordinate: model.Coordinate{Latitude: 9.5916, Longitude: 76.5221}, Price: decimal.RequireFromString("185.2")},
		{MarketName: "Pala APMC", Coordinate: model.Coordinate{Latitude: 9.7118, Longitude: 76.6853}, Price: decimal.RequireFromString("182.2")},
	}
}

// Engine is the network-backed recommendation engine. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	candidates CandidateSource
	routes     RouteEstimator
	cfg        Config
}

// NewEngine creates a recommendation engine. Zero config values take the
// defaults.
func NewEngine(candidates CandidateSource, routes RouteEstimator, cfg Config) *Engine {
	if cfg.CostPerKmPerUnit <= 0 {
		cfg.CostPerKmPerUnit = DefaultCostPerKmPerUnit
	}
	if cfg.MaxRouted <= 0 {
		cfg.MaxRouted = DefaultMaxRouted
	}
	return &Engine{candidates: candidates, routes: routes, cfg: cfg}
}

type ranked struct {
	candidate model.MarketCandidate
	route     model.RouteEstimate
	transport float64
	net       float64
}

// FindBestMandis returns the nearest candidate markets ordered by net profit
// per unit, highest first. Input is validated before any upstream call.
func (e *Engine) FindBestMandis(ctx context.Context, cropName string, quantity float64, origin model.Coordinate) (*model.MandiRanking, error) {
	req, err := crop.ParseRequest(cropName, quantity)
	if err != nil {
		return nil, err
	}
	if err := geo.ValidateCoordinate(origin); err != nil {
		return nil, err
	}

	start := time.Now()
	defer metrics.ObserveEngine("recommend", start)

	set := e.candidates.CandidateMarkets(ctx, req.Name)
	provenance := set.Provenance
	candidates := latestPerMarket(set.Candidates)
	if len(candidates) == 0 {
		slog.Warn("no candidate market with a known location, using fallback set", "crop", req.Name)
		metrics.Fallbacks.WithLabelValues("recommend_markets").Inc()
		candidates = FallbackMarkets()
		provenance = model.Synthetic("no candidate market with a known location")
	}
	candidates = nearest(origin, candidates, e.cfg.MaxRouted)

	routes := make([]model.RouteEstimate, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			routes[i] = e.routes.EstimateRoute(gctx, origin, c.Coordinate)
			return nil
		})
	}
	_ = g.Wait() // estimates never fail

	rows := make([]ranked, len(candidates))
	for i, c := range candidates {
		price, _ := c.Price.Float64()
		transport := routes[i].DistanceKm * e.cfg.CostPerKmPerUnit * req.Quantity
		rows[i] = ranked{
			candidate: c,
			route:     routes[i],
			transport: transport,
			net:       (price*req.Quantity - transport) / req.Quantity,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].net > rows[j].net
	})

	recs := make([]model.MandiRecommendation, len(rows))
	for i, r := range rows {
		recs[i] = model.MandiRecommendation{
			MarketName:        r.candidate.MarketName,
			DistanceKm:        round(r.route.DistanceKm, 1),
			TravelTimeMinutes: int(math.Round(r.route.DurationMinutes)),
			ModalPrice:        r.candidate.Price,
			TransportCost:     decimal.NewFromFloat(r.transport).Round(1),
			NetProfitPerUnit:  decimal.NewFromFloat(r.net).Round(2),
			Coordinate:        r.candidate.Coordinate,
			RouteSource:       r.route.Provenance.Source,
		}
	}

	slog.Info("mandis ranked",
		"crop", req.Name,
		"quantity", req.Quantity,
		"candidates", len(recs),
		"source", provenance.Source,
	)

	return &model.MandiRanking{
		CropName:        req.Name,
		Quantity:        req.Quantity,
		Recommendations: recs,
		Provenance:      provenance,
	}, nil
}

// latestPerMarket keeps one candidate per market name, the one with the
// latest AsOf. First-seen order is preserved.
func latestPerMarket(in []model.MarketCandidate) []model.MarketCandidate {
	index := make(map[string]int, len(in))
	out := make([]model.MarketCandidate, 0, len(in))
	for _, c := range in {
		if i, ok := index[c.MarketName]; ok {
			if c.AsOf.After(out[i].AsOf) {
				out[i] = c
			}
			continue
		}
		index[c.MarketName] = len(out)
		out = append(out, c)
	}
	return out
}

// nearest returns at most n candidates ordered by air distance from origin.
func nearest(origin model.Coordinate, in []model.MarketCandidate, n int) []model.MarketCandidate {
	type byAir struct {
		c model.MarketCandidate
		d float64
	}
	sorted := make([]byAir, len(in))
	for i, c := range in {
		sorted[i] = byAir{c: c, d: geo.Haversine(origin, c.Coordinate)}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].d < sorted[j].d
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]model.MarketCandidate, len(sorted))
	for i, s := range sorted {
		out[i] = s.c
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
