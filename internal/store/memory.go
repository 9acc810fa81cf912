package store

import (
	"context"

	"github.com/agrostack/mandi-engine/internal/model"
)

// DefaultMarkets returns the built-in Kerala mandi table.
func DefaultMarkets() []model.KnownMarket {
	return []model.KnownMarket{
		{Name: "Kottayam", Coordinate: model.Coordinate{Latitude: 9.5916, Longitude: 76.5221}},
		{Name: "Kanjirappally", Coordinate: model.Coordinate{Latitude: 9.5544, Longitude: 76.7869}},
		{Name: "Palai", Coordinate: model.Coordinate{Latitude: 9.7118, Longitude: 76.6853}},
		{Name: "Changanassery", Coordinate: model.Coordinate{Latitude: 9.4452, Longitude: 76.5398}},
		{Name: "Thodupuzha", Coordinate: model.Coordinate{Latitude: 9.8959, Longitude: 76.7184}},
		{Name: "Nedumangad", Coordinate: model.Coordinate{Latitude: 8.6024, Longitude: 77.0028}},
		{Name: "Kalpetta", Coordinate: model.Coordinate{Latitude: 11.6080, Longitude: 76.0825}},
		{Name: "Manjeri", Coordinate: model.Coordinate{Latitude: 11.1197, Longitude: 76.1219}},
		{Name: "Vatakara", Coordinate: model.Coordinate{Latitude: 11.6103, Longitude: 75.5919}},
		{Name: "Adimali", Coordinate: model.Coordinate{Latitude: 10.0116, Longitude: 76.9536}},
	}
}

// MemoryDirectory implements Directory over an in-memory table. Used for
// development, tests and as the default when no database is configured.
// The table is fixed at construction.
type MemoryDirectory struct {
	markets []model.KnownMarket
}

// NewMemoryDirectory creates a directory. A nil table means DefaultMarkets.
func NewMemoryDirectory(markets []model.KnownMarket) *MemoryDirectory {
	if markets == nil {
		markets = DefaultMarkets()
	}
	// Copy to avoid external mutation.
	table := make([]model.KnownMarket, len(markets))
	copy(table, markets)
	return &MemoryDirectory{markets: table}
}

func (d *MemoryDirectory) ListMarkets(_ context.Context) ([]model.KnownMarket, error) {
	out := make([]model.KnownMarket, len(d.markets))
	copy(out, d.markets)
	return out, nil
}
