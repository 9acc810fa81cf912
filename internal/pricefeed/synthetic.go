package pricefeed

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostack/mandi-engine/internal/model"
)

// Synthetic data shape.
const (
	syntheticJitter       = 0.02 // ± fraction of baseline on the current price
	syntheticDayChange    = 1.5  // ± percent
	syntheticWave         = 10.0 // amplitude of the history curve
	syntheticWavePeriod   = 5.0  // points per radian of the history curve
	syntheticMarketSpread = 20.0 // candidate prices span [baseline, baseline+spread)
	minSyntheticPrice     = 0.01
)

// synthesizer produces deterministic stand-in data. Output depends only on
// the commodity name, the baseline, the seed and the supplied date, so
// repeated calls are reproducible.
type synthesizer struct {
	baseline float64
	seed     int64
}

func (s synthesizer) rng(commodity, stream string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(commodity))
	h.Write([]byte{0})
	h.Write([]byte(stream))
	return rand.New(rand.NewSource(int64(h.Sum64()) ^ s.seed))
}

func (s synthesizer) quote(commodity string) (price, dayChange float64) {
	r := s.rng(commodity, "quote")
	price = s.baseline * (1 + (r.Float64()*2-1)*syntheticJitter)
	dayChange = (r.Float64()*2 - 1) * syntheticDayChange
	return math.Max(price, minSyntheticPrice), dayChange
}

// history returns n daily points ending on today, oldest first.
func (s synthesizer) history(commodity string, n int, today time.Time) []model.MarketPricePoint {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	points := make([]model.MarketPricePoint, n)
	for i := 0; i < n; i++ {
		price := s.baseline + math.Sin(float64(i)/syntheticWavePeriod)*syntheticWave
		points[i] = model.MarketPricePoint{
			CommodityName:     commodity,
			ModalPricePerUnit: decimal.NewFromFloat(math.Max(price, minSyntheticPrice)).Round(2),
			AsOfDate:          day.AddDate(0, 0, i-(n-1)),
		}
	}
	return points
}

func (s synthesizer) candidates(commodity string, markets []model.KnownMarket, today time.Time) []model.MarketCandidate {
	r := s.rng(commodity, "candidates")
	out := make([]model.MarketCandidate, 0, len(markets))
	for _, m := range markets {
		price := s.baseline + r.Float64()*syntheticMarketSpread
		out = append(out, model.MarketCandidate{
			MarketName: m.Name,
			Coordinate: m.Coordinate,
			Price:      decimal.NewFromFloat(math.Max(price, minSyntheticPrice)).Round(2),
			AsOf:       today,
		})
	}
	return out
}
