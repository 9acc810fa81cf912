// Package model defines the domain types shared across the mandi engine.
// Monetary values use shopspring/decimal; distances, durations and scores
// stay float64.
//
// Every type here is request-scoped: computed per call, returned to the
// caller and never persisted by the engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Source tells callers whether a value came from a live upstream or was
// produced by a fallback path.
type Source string

const (
	SourceLive      Source = "live"
	SourceSynthetic Source = "synthetic" // price feed fallback data
	SourceEstimated Source = "estimated" // analytic route approximation
)

// Provenance is attached to every response that may have been degraded.
type Provenance struct {
	Source Source `json:"source"`
	Reason string `json:"reason,omitempty"`
}

// Live returns a provenance for data served by the upstream.
func Live() Provenance {
	return Provenance{Source: SourceLive}
}

// Synthetic returns a provenance for fallback data with the reason the
// upstream could not be used.
func Synthetic(reason string) Provenance {
	return Provenance{Source: SourceSynthetic, Reason: reason}
}

// Estimated returns a provenance for analytically approximated routes.
func Estimated(reason string) Provenance {
	return Provenance{Source: SourceEstimated, Reason: reason}
}

// Degraded reports whether the value did not come from a live upstream.
func (p Provenance) Degraded() bool {
	return p.Source != SourceLive
}

// MarketPricePoint is one observed modal price for a commodity on a date.
// ModalPricePerUnit is always positive and already normalised per unit.
type MarketPricePoint struct {
	CommodityName     string          `json:"commodity_name"`
	MarketName        string          `json:"market_name,omitempty"`
	ModalPricePerUnit decimal.Decimal `json:"price"`
	AsOfDate          time.Time       `json:"date"`
}

// PriceQuote is the current price for a commodity plus its day-over-day move.
type PriceQuote struct {
	CommodityName    string          `json:"commodity_name"`
	Price            decimal.Decimal `json:"price"`
	DayChangePercent float64         `json:"day_change_percent"`
	Provenance       Provenance      `json:"provenance"`
}

// PriceHistory is an oldest-first price series.
type PriceHistory struct {
	CommodityName string             `json:"commodity_name"`
	Points        []MarketPricePoint `json:"points"`
	Provenance    Provenance         `json:"provenance"`
}

// KnownMarket is an entry of the mandi directory: a market name with a
// resolvable coordinate.
type KnownMarket struct {
	Name       string     `json:"name" db:"name"`
	Coordinate Coordinate `json:"coordinates"`
}

// MarketCandidate is a market eligible for ranking.
type MarketCandidate struct {
	MarketName string          `json:"market_name"`
	Coordinate Coordinate      `json:"coordinates"`
	Price      decimal.Decimal `json:"price"` // per unit
	AsOf       time.Time       `json:"as_of,omitempty"`
}

// CandidateSet is the candidate pool for one commodity.
type CandidateSet struct {
	CommodityName string            `json:"commodity_name"`
	Candidates    []MarketCandidate `json:"candidates"`
	Provenance    Provenance        `json:"provenance"`
}

// RouteEstimate is the road distance and duration between two points.
type RouteEstimate struct {
	DistanceKm      float64    `json:"distance_km"`
	DurationMinutes float64    `json:"duration_mins"`
	Provenance      Provenance `json:"provenance"`
}

// RouteMetrics is the per-market route breakdown used by the scoring engine.
type RouteMetrics struct {
	DistanceKm      float64         `json:"distance_km"`
	DurationMinutes float64         `json:"duration_mins"`
	FuelCost        decimal.Decimal `json:"fuel_cost"`
	TollCost        decimal.Decimal `json:"tolls"`
	LaborCost       decimal.Decimal `json:"labor_cost"`
}

// MandiRecommendation ranks a market by net profit per unit after transport.
type MandiRecommendation struct {
	MarketName        string          `json:"mandi_name"`
	DistanceKm        float64         `json:"distance_km"`
	TravelTimeMinutes int             `json:"travel_time_mins"`
	ModalPrice        decimal.Decimal `json:"modal_price"`
	TransportCost     decimal.Decimal `json:"transport_cost"`
	NetProfitPerUnit  decimal.Decimal `json:"net_profit_per_kg"`
	Coordinate        Coordinate      `json:"coordinates"`
	RouteSource       Source          `json:"route_source"`
}

// MandiRanking is the output of the recommendation engine, highest net
// profit per unit first.
type MandiRanking struct {
	CropName        string                `json:"crop_name"`
	Quantity        float64               `json:"quantity"`
	Recommendations []MandiRecommendation `json:"recommendations"`
	Provenance      Provenance            `json:"provenance"`
}

// MarketScore is one row of the weighted market scoring panel.
type MarketScore struct {
	MarketName      string          `json:"mandi_name"`
	Price           decimal.Decimal `json:"price"`
	NetProfit       decimal.Decimal `json:"net_profit"` // per unit
	Score           float64         `json:"score"`
	MatchPercentage int             `json:"match_percentage"`
	Route           RouteMetrics    `json:"route"`
	Coordinate      Coordinate      `json:"coordinates"`
}

// MarketPreview is the single best market from the scoring panel.
type MarketPreview struct {
	MarketName string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Profit     decimal.Decimal `json:"profit"`
}

// Hold-vs-sell horizons.
const (
	HorizonNow        = "now"
	HorizonThreeMonth = "3m"
	HorizonSixMonth   = "6m"
)

// HoldSellProjection is the projected outcome of selling at one horizon.
type HoldSellProjection struct {
	Horizon        string          `json:"horizon"`
	ProjectedPrice decimal.Decimal `json:"projected_price"`
	PriceRangeLow  decimal.Decimal `json:"price_range_low"`
	PriceRangeHigh decimal.Decimal `json:"price_range_high"`
	StorageCost    decimal.Decimal `json:"storage_cost"`
	NetProfit      decimal.Decimal `json:"net_profit"`
}

// HoldSellReport is the output of the decision-support engine.
type HoldSellReport struct {
	CurrentPrice   decimal.Decimal      `json:"current_price"`
	Quantity       float64              `json:"quantity"`
	EstimatedCost  decimal.Decimal      `json:"estimated_cost"`
	BreakEvenPrice decimal.Decimal      `json:"break_even_price"`
	CurrentProfit  decimal.Decimal      `json:"current_profit"`
	Projections    []HoldSellProjection `json:"projections"` // now, 3m, 6m
	RiskLevel      string               `json:"risk_level"`
	Confidence     int                  `json:"confidence"`
	Action         string               `json:"action"`
	Recommendation string               `json:"recommendation"`
}

// Projection returns the projection for a horizon.
func (r *HoldSellReport) Projection(horizon string) (HoldSellProjection, bool) {
	for _, p := range r.Projections {
		if p.Horizon == horizon {
			return p, true
		}
	}
	return HoldSellProjection{}, false
}

// TickerEntry is one row of the live commodity ticker.
type TickerEntry struct {
	CropName         string          `json:"crop_name"`
	LiveModalPrice   decimal.Decimal `json:"live_modal_price"`
	DayChangePercent float64         `json:"day_change_percentage"`
	TrendColorCode   string          `json:"trend_color_code"`
}
