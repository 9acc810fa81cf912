// Package scoring is the offline market scoring engine. It ranks a curated
// panel of APMC markets by a weighted score of price, air distance and
// demand stability. No per-market network call is made, which makes it
// suitable as a fast preview next to the routed recommendation engine.
package scoring

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/geo"
	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
)

// Score weights.
const (
	PriceWeight    = 0.4
	DistanceWeight = 0.3
	DemandWeight   = 0.3

	priceHeadroom     = 1.05  // price component is livePrice / (baseline × headroom)
	distanceHorizonKm = 100.0 // distance score decays linearly to zero here
)

// DefaultFallbackPrice is the baseline when neither caller nor price source
// supplies one.
const DefaultFallbackPrice = 180.0

// PreviewOrigin is the reference location used by BestMarketPreview.
var PreviewOrigin = model.Coordinate{Latitude: 9.5916, Longitude: 76.5221}

// PriceSource supplies the baseline price when the caller gives none.
type PriceSource interface {
	CurrentPrice(ctx context.Context, cropName string) model.PriceQuote
}

// CostModel is the per-trip cost of taking produce to a market.
type CostModel struct {
	FuelLitresPerKm   float64
	FuelPrice         float64 // per litre
	TollFee           float64 // charged once the trip exceeds TollThresholdKm
	TollThresholdKm   float64
	LaborCost         float64 // flat per trip
	DepreciationPerKm float64
	MinutesPerKm      float64
}

// DefaultCostModel returns the stock Kerala cost assumptions.
func DefaultCostModel() CostModel {
	return CostModel{
		FuelLitresPerKm:   0.15,
		FuelPrice:         105,
		TollFee:           45,
		TollThresholdKm:   20,
		LaborCost:         500,
		DepreciationPerKm: 2,
		MinutesPerKm:      2,
	}
}

type tripCost struct {
	fuel, toll, labor, depreciation float64
}

func (t tripCost) total() float64 {
	return t.fuel + t.toll + t.labor + t.depreciation
}

func (m CostModel) trip(distanceKm float64) tripCost {
	t := tripCost{
		fuel:         distanceKm * m.FuelLitresPerKm * m.FuelPrice,
		labor:        m.LaborCost,
		depreciation: distanceKm * m.DepreciationPerKm,
	}
	if distanceKm > m.TollThresholdKm {
		t.toll = m.TollFee
	}
	return t
}

// panelMarket is a curated market whose price offset and demand stability
// vary with the crop through a small integer seed.
type panelMarket struct {
	name   string
	coord  model.Coordinate
	offset func(seed int) float64
	demand func(seed int) float64
}

var panel = []panelMarket{
	{
		name:   "Kanjirappally APMC",
		coord:  model.Coordinate{Latitude: 9.5544, Longitude: 76.7869},
		offset: func(s int) float64 { return 1.02 + float64(s%3)*0.01 },
		demand: func(s int) float64 { return 0.95 - float64(s%2)*0.05 },
	},
	{
		name:   "Kottayam APMC",
		coord:  model.Coordinate{Latitude: 9.5916, Longitude: 76.5222},
		offset: func(s int) float64 { return 1.00 + float64(s%4)*0.005 },
		demand: func(s int) float64 { return 0.9 + float64(s%3)*0.02 },
	},
	{
		name:   "Pala APMC",
		coord:  model.Coordinate{Latitude: 9.7118, Longitude: 76.6853},
		offset: func(s int) float64 { return 0.98 + float64(s%2)*0.03 },
		demand: func(s int) float64 { return 0.85 + float64(s%5)*0.01 },
	},
	{
		name:   "Changanassery APMC",
		coord:  model.Coordinate{Latitude: 9.4452, Longitude: 76.5398},
		offset: func(s int) float64 { return 0.97 + float64(s%5)*0.015 },
		demand: func(s int) float64 { return 0.75 + float64(s%4)*0.05 },
	},
	{
		name:   "Thodupuzha APMC",
		coord:  model.Coordinate{Latitude: 9.8959, Longitude: 76.7184},
		offset: func(s int) float64 { return 1.01 - float64(s%3)*0.01 },
		demand: func(s int) float64 { return 0.88 + float64(s%2)*0.04 },
	},
}

// Engine computes market scores.
type Engine struct {
	prices        PriceSource
	costs         CostModel
	fallbackPrice float64
}

// NewEngine creates a scoring engine. prices may be nil, in which case
// fallbackPrice is the baseline whenever the caller gives none.
func NewEngine(prices PriceSource, costs CostModel, fallbackPrice float64) *Engine {
	if fallbackPrice <= 0 {
		fallbackPrice = DefaultFallbackPrice
	}
	return &Engine{prices: prices, costs: costs, fallbackPrice: fallbackPrice}
}

// CalculateMarketScores scores every panel market for the crop, highest
// score first. A nil baseline is looked up from the price source.
func (e *Engine) CalculateMarketScores(ctx context.Context, cropName string, quantity float64, origin model.Coordinate, baseline *float64) ([]model.MarketScore, error) {
	req, err := crop.ParseRequest(cropName, quantity)
	if err != nil {
		return nil, err
	}
	if err := geo.ValidateCoordinate(origin); err != nil {
		return nil, err
	}
	if baseline != nil {
		if err := crop.ValidatePrice(*baseline); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	defer metrics.ObserveEngine("scores", start)

	base := e.baseline(ctx, req.Name, baseline)
	seed := len(req.Name)

	scores := make([]model.MarketScore, len(panel))
	for i, m := range panel {
		livePrice := base * m.offset(seed)
		distance := geo.Haversine(origin, m.coord)
		cost := e.costs.trip(distance)
		net := (livePrice*req.Quantity - cost.total()) / req.Quantity

		distanceScore := math.Max(0, 1-distance/distanceHorizonKm)
		score := PriceWeight*(livePrice/(base*priceHeadroom)) +
			DistanceWeight*distanceScore +
			DemandWeight*m.demand(seed)

		scores[i] = model.MarketScore{
			MarketName:      m.name,
			Price:           decimal.NewFromFloat(livePrice).Round(2),
			NetProfit:       decimal.NewFromFloat(net).Round(2),
			Score:           score,
			MatchPercentage: int(math.Round(score * 100)),
			Coordinate:      m.coord,
			Route: model.RouteMetrics{
				DistanceKm:      math.Round(distance*10) / 10,
				DurationMinutes: math.Round(distance * e.costs.MinutesPerKm),
				FuelCost:        decimal.NewFromFloat(cost.fuel).Round(2),
				TollCost:        decimal.NewFromFloat(cost.toll),
				LaborCost:       decimal.NewFromFloat(cost.labor),
			},
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// BestMarketPreview returns the top-scored market for one unit sold from
// PreviewOrigin.
func (e *Engine) BestMarketPreview(ctx context.Context, cropName string, baseline *float64) (*model.MarketPreview, error) {
	scores, err := e.CalculateMarketScores(ctx, cropName, 1, PreviewOrigin, baseline)
	if err != nil {
		return nil, err
	}
	best := scores[0]
	return &model.MarketPreview{
		MarketName: best.MarketName,
		Price:      best.Price,
		Profit:     best.NetProfit,
	}, nil
}

func (e *Engine) baseline(ctx context.Context, cropName string, given *float64) float64 {
	if given != nil {
		return *given
	}
	if e.prices != nil {
		// Synthetic quotes carry jitter; a degraded feed scores from the
		// configured fallback instead.
		q := e.prices.CurrentPrice(ctx, cropName)
		if p, _ := q.Price.Float64(); p > 0 && !q.Provenance.Degraded() {
			return p
		}
	}
	return e.fallbackPrice
}
