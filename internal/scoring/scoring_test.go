package scoring

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/model"
	"github.com/agrostack/mandi-engine/internal/pricefeed"
)

var kottayamAPMC = model.Coordinate{Latitude: 9.5916, Longitude: 76.5222}

type stubPrices struct {
	price      decimal.Decimal
	provenance *model.Provenance
	calls      int
}

func (s *stubPrices) CurrentPrice(_ context.Context, cropName string) model.PriceQuote {
	s.calls++
	prov := model.Live()
	if s.provenance != nil {
		prov = *s.provenance
	}
	return model.PriceQuote{CommodityName: cropName, Price: s.price, Provenance: prov}
}

func ptr(f float64) *float64 { return &f }

func find(t *testing.T, scores []model.MarketScore, name string) model.MarketScore {
	t.Helper()
	for _, s := range scores {
		if s.MarketName == name {
			return s
		}
	}
	t.Fatalf("market %q not in scores", name)
	return model.MarketScore{}
}

func TestCalculateMarketScores_SortedAndMatchPercentage(t *testing.T) {
	e := NewEngine(nil, DefaultCostModel(), 0)
	origins := []model.Coordinate{
		kottayamAPMC,
		{Latitude: 9.9312, Longitude: 76.2673}, // Kochi
		{Latitude: 8.5241, Longitude: 76.9366}, // Thiruvananthapuram
	}
	for _, cropName := range []string{"Rubber", "Cardamom", "Black Pepper", "Arecanut", "Tea"} {
		for _, origin := range origins {
			scores, err := e.CalculateMarketScores(context.Background(), cropName, 50, origin, ptr(210))
			require.NoError(t, err)
			require.Len(t, scores, len(panel))
			for i, s := range scores {
				assert.Equal(t, int(math.Round(s.Score*100)), s.MatchPercentage)
				if i > 0 {
					assert.GreaterOrEqual(t, scores[i-1].Score, s.Score, "%s from %v not sorted", cropName, origin)
				}
			}
		}
	}
}

func TestCalculateMarketScores_CompositeFormula(t *testing.T) {
	e := NewEngine(nil, DefaultCostModel(), 0)

	// "Rubber" has seed 6: Kottayam offset 1.01, demand 0.90.
	scores, err := e.CalculateMarketScores(context.Background(), "Rubber", 10, kottayamAPMC, ptr(200))
	require.NoError(t, err)

	k := find(t, scores, "Kottayam APMC")
	assert.True(t, k.Price.Equal(decimal.NewFromInt(202)), "price %s", k.Price)
	// Zero distance: cost is labor only, (202×10 − 500) / 10.
	assert.True(t, k.NetProfit.Equal(decimal.NewFromInt(152)), "net %s", k.NetProfit)
	assert.InDelta(t, 0.4*1.01/1.05+0.3+0.3*0.9, k.Score, 1e-9)
	assert.Equal(t, 95, k.MatchPercentage)
	assert.Equal(t, 0.0, k.Route.DistanceKm)
	assert.True(t, k.Route.TollCost.IsZero())
	assert.True(t, k.Route.LaborCost.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "Kottayam APMC", scores[0].MarketName)
}

func TestCalculateMarketScores_TollAndDuration(t *testing.T) {
	e := NewEngine(nil, DefaultCostModel(), 0)
	scores, err := e.CalculateMarketScores(context.Background(), "Rubber", 10, kottayamAPMC, ptr(200))
	require.NoError(t, err)

	far := find(t, scores, "Thodupuzha APMC")
	require.Greater(t, far.Route.DistanceKm, 20.0)
	assert.True(t, far.Route.TollCost.Equal(decimal.NewFromInt(45)))
	assert.InDelta(t, far.Route.DistanceKm*2, far.Route.DurationMinutes, 1)
	assert.InDelta(t, far.Route.DistanceKm*0.15*105, far.Route.FuelCost.InexactFloat64(), 1)
}

func TestCalculateMarketScores_VariesByCrop(t *testing.T) {
	e := NewEngine(nil, DefaultCostModel(), 0)
	rubber, err := e.CalculateMarketScores(context.Background(), "Rubber", 10, kottayamAPMC, ptr(200))
	require.NoError(t, err)
	cardamom, err := e.CalculateMarketScores(context.Background(), "Cardamom", 10, kottayamAPMC, ptr(200))
	require.NoError(t, err)

	assert.False(t, find(t, rubber, "Kanjirappally APMC").Price.Equal(find(t, cardamom, "Kanjirappally APMC").Price))
}

func TestCalculateMarketScores_BaselineFromPriceSource(t *testing.T) {
	prices := &stubPrices{price: decimal.NewFromInt(300)}
	e := NewEngine(prices, DefaultCostModel(), 0)

	scores, err := e.CalculateMarketScores(context.Background(), "Rubber", 10, kottayamAPMC, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls)
	assert.True(t, find(t, scores, "Kottayam APMC").Price.Equal(decimal.NewFromInt(303)))

	_, err = e.CalculateMarketScores(context.Background(), "Rubber", 10, kottayamAPMC, ptr(200))
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls, "explicit baseline must not hit the price source")
}

func TestCalculateMarketScores_FallbackPriceWithoutSource(t *testing.T) {
	e := NewEngine(nil, DefaultCostModel(), 0)
	scores, err := e.CalculateMarketScores(context.Background(), "Rubber", 10, kottayamAPMC, nil)
	require.NoError(t, err)
	assert.True(t, find(t, scores, "Kottayam APMC").Price.Equal(decimal.NewFromFloat(181.8)))
}

func TestCalculateMarketScores_DegradedQuoteUsesFallbackPrice(t *testing.T) {
	degraded := model.Synthetic("feed down")
	prices := &stubPrices{price: decimal.NewFromFloat(179.11), provenance: &degraded}
	e := NewEngine(prices, DefaultCostModel(), 200)

	scores, err := e.CalculateMarketScores(context.Background(), "Rubber", 10, kottayamAPMC, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls)
	assert.True(t, find(t, scores, "Kottayam APMC").Price.Equal(decimal.NewFromInt(202)))
}

func TestCalculateMarketScores_FeedlessProviderUsesFallbackPrice(t *testing.T) {
	provider := pricefeed.NewProvider(nil, nil, pricefeed.Config{})
	e := NewEngine(provider, DefaultCostModel(), 180)

	scores, err := e.CalculateMarketScores(context.Background(), "Rubber", 10, PreviewOrigin, nil)
	require.NoError(t, err)
	assert.True(t, find(t, scores, "Kottayam APMC").Price.Equal(decimal.NewFromFloat(181.8)))
}

func TestCalculateMarketScores_InvalidInput(t *testing.T) {
	prices := &stubPrices{price: decimal.NewFromInt(300)}
	e := NewEngine(prices, DefaultCostModel(), 0)

	cases := []struct {
		name     string
		crop     string
		quantity float64
		baseline *float64
	}{
		{"zero quantity", "Rubber", 0, nil},
		{"empty crop", "", 10, nil},
		{"zero baseline", "Rubber", 10, ptr(0)},
		{"negative baseline", "Rubber", 10, ptr(-1)},
		{"nan baseline", "Rubber", 10, ptr(math.NaN())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CalculateMarketScores(context.Background(), tc.crop, tc.quantity, kottayamAPMC, tc.baseline)
			assert.ErrorIs(t, err, crop.ErrInvalidInput)
		})
	}
	assert.Zero(t, prices.calls)
}

func TestBestMarketPreview(t *testing.T) {
	e := NewEngine(nil, DefaultCostModel(), 0)

	preview, err := e.BestMarketPreview(context.Background(), "Rubber", ptr(200))
	require.NoError(t, err)
	assert.Equal(t, "Kottayam APMC", preview.MarketName)
	assert.True(t, preview.Price.Equal(decimal.NewFromInt(202)))
	// One unit cannot cover the flat labor cost.
	assert.True(t, preview.Profit.IsNegative())

	scores, err := e.CalculateMarketScores(context.Background(), "Rubber", 1, PreviewOrigin, ptr(200))
	require.NoError(t, err)
	assert.True(t, scores[0].NetProfit.Equal(preview.Profit))
}

func TestBestMarketPreview_InvalidCrop(t *testing.T) {
	_, err := NewEngine(nil, DefaultCostModel(), 0).BestMarketPreview(context.Background(), " ", nil)
	assert.ErrorIs(t, err, crop.ErrInvalidInput)
}
