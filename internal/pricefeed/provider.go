package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
	"github.com/agrostack/mandi-engine/internal/store"
)

// Feed query defaults.
const (
	DefaultFallbackPrice  = 180.0
	DefaultCandidateLimit = 20
	DefaultHistoryLimit   = 30
	quoteLimit            = 2 // latest and previous record for the day change
)

// Ticker trend colours.
const (
	TrendUpColor   = "#22c55e"
	TrendDownColor = "#ef4444"
)

// Config tunes the provider.
type Config struct {
	FallbackPrice  float64          // synthetic baseline per unit
	CandidateLimit int              // feed records considered for candidate markets
	Seed           int64            // mixed into synthetic generators
	Now            func() time.Time // clock for synthetic dates; nil = time.Now
}

// Provider serves current prices, price history and candidate markets.
// It holds no mutable state; every call is independent.
type Provider struct {
	source    Source
	directory store.Directory
	cfg       Config
	synth     synthesizer
}

// NewProvider creates a price provider. source may be nil (always synthetic);
// directory nil means the built-in market table.
func NewProvider(source Source, directory store.Directory, cfg Config) *Provider {
	if cfg.FallbackPrice <= 0 {
		cfg.FallbackPrice = DefaultFallbackPrice
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if directory == nil {
		directory = store.NewMemoryDirectory(nil)
	}
	return &Provider{
		source:    source,
		directory: directory,
		cfg:       cfg,
		synth:     synthesizer{baseline: cfg.FallbackPrice, seed: cfg.Seed},
	}
}

// FallbackPrice returns the synthetic baseline price.
func (p *Provider) FallbackPrice() float64 {
	return p.cfg.FallbackPrice
}

// fetch reads feed records for a crop. Feed failures are absorbed: the
// returned reason is non-empty whenever no usable record was obtained.
func (p *Provider) fetch(ctx context.Context, cropName string, limit int) ([]Record, string) {
	if p.source == nil {
		return nil, "no price feed configured"
	}

	commodity := crop.FeedName(cropName)
	start := time.Now()
	records, err := p.source.Records(ctx, commodity, limit)
	if err != nil {
		metrics.ObserveUpstream("price_feed", metrics.OutcomeError, start)
		slog.Warn("price feed unavailable, using synthetic data",
			"crop", cropName, "commodity", commodity, "err", err)
		return nil, err.Error()
	}

	var usable []Record
	for _, r := range records {
		if r.PerUnit() > 0 {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		metrics.ObserveUpstream("price_feed", metrics.OutcomeEmpty, start)
		return nil, fmt.Sprintf("price feed returned no records for %s", commodity)
	}
	metrics.ObserveUpstream("price_feed", metrics.OutcomeOK, start)
	return usable, ""
}

// CurrentPrice returns the latest per-unit price and its change versus the
// previous record.
func (p *Provider) CurrentPrice(ctx context.Context, cropName string) model.PriceQuote {
	records, reason := p.fetch(ctx, cropName, quoteLimit)
	if reason != "" {
		metrics.Fallbacks.WithLabelValues("current_price").Inc()
		price, change := p.synth.quote(cropName)
		return model.PriceQuote{
			CommodityName:    cropName,
			Price:            decimal.NewFromFloat(price).Round(2),
			DayChangePercent: change,
			Provenance:       model.Synthetic(reason),
		}
	}

	current := records[0].PerUnit()
	previous := current
	if len(records) > 1 {
		previous = records[1].PerUnit()
	}
	change := 0.0
	if previous > 0 {
		change = (current - previous) / previous * 100
	}

	return model.PriceQuote{
		CommodityName:    cropName,
		Price:            decimal.NewFromFloat(current).Round(2),
		DayChangePercent: change,
		Provenance:       model.Live(),
	}
}

// HistoricalPrices returns up to lookback prices, oldest first.
func (p *Provider) HistoricalPrices(ctx context.Context, cropName string, lookback int) model.PriceHistory {
	if lookback <= 0 {
		lookback = DefaultHistoryLimit
	}

	records, reason := p.fetch(ctx, cropName, lookback)
	var points []model.MarketPricePoint
	for _, r := range records {
		date, err := r.Arrival()
		if err != nil {
			continue
		}
		points = append(points, model.MarketPricePoint{
			CommodityName:     cropName,
			MarketName:        r.Market,
			ModalPricePerUnit: decimal.NewFromFloat(r.PerUnit()).Round(2),
			AsOfDate:          date,
		})
	}
	if len(points) == 0 {
		if reason == "" {
			reason = "price feed returned no dated records"
		}
		metrics.Fallbacks.WithLabelValues("price_history").Inc()
		return model.PriceHistory{
			CommodityName: cropName,
			Points:        p.synth.history(cropName, lookback, p.cfg.Now()),
			Provenance:    model.Synthetic(reason),
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].AsOfDate.Before(points[j].AsOfDate)
	})
	return model.PriceHistory{
		CommodityName: cropName,
		Points:        points,
		Provenance:    model.Live(),
	}
}

// CandidateMarkets joins the latest feed price per market to the mandi
// directory. Markets without a known coordinate are dropped; the set may
// therefore be empty on a live answer. When the feed has no records every
// known market is priced synthetically.
func (p *Provider) CandidateMarkets(ctx context.Context, cropName string) model.CandidateSet {
	markets, err := p.directory.ListMarkets(ctx)
	if err != nil || len(markets) == 0 {
		if err != nil {
			slog.Warn("mandi directory unavailable, using built-in table", "err", err)
		}
		markets = store.DefaultMarkets()
	}

	records, reason := p.fetch(ctx, cropName, p.cfg.CandidateLimit)
	if reason != "" {
		metrics.Fallbacks.WithLabelValues("candidate_markets").Inc()
		return model.CandidateSet{
			CommodityName: cropName,
			Candidates:    p.synth.candidates(cropName, markets, p.cfg.Now()),
			Provenance:    model.Synthetic(reason),
		}
	}

	latest := make(map[string]int) // market name → index in candidates
	var candidates []model.MarketCandidate
	for _, r := range records {
		known, ok := store.Resolve(markets, r.Market)
		if !ok {
			continue
		}
		asOf, _ := r.Arrival()
		c := model.MarketCandidate{
			MarketName: r.Market,
			Coordinate: known.Coordinate,
			Price:      decimal.NewFromFloat(r.PerUnit()).Round(2),
			AsOf:       asOf,
		}
		if i, seen := latest[r.Market]; seen {
			if asOf.After(candidates[i].AsOf) {
				candidates[i] = c
			}
			continue
		}
		latest[r.Market] = len(candidates)
		candidates = append(candidates, c)
	}

	return model.CandidateSet{
		CommodityName: cropName,
		Candidates:    candidates,
		Provenance:    model.Live(),
	}
}

// Ticker returns live quotes for the ticker crops. Crops without a live
// quote are omitted.
func (p *Provider) Ticker(ctx context.Context) []model.TickerEntry {
	quotes := make([]model.PriceQuote, len(crop.TickerCrops))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range crop.TickerCrops {
		i, name := i, name
		g.Go(func() error {
			quotes[i] = p.CurrentPrice(gctx, name)
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	entries := make([]model.TickerEntry, 0, len(quotes))
	for _, q := range quotes {
		if q.Provenance.Degraded() {
			continue
		}
		color := TrendUpColor
		if q.DayChangePercent < 0 {
			color = TrendDownColor
		}
		entries = append(entries, model.TickerEntry{
			CropName:         q.CommodityName,
			LiveModalPrice:   q.Price,
			DayChangePercent: q.DayChangePercent,
			TrendColorCode:   color,
		})
	}
	return entries
}
