// Package store defines the mandi directory: the table of known markets and
// their coordinates that price-feed records are joined against. The feed
// itself carries no coordinates.
//
// Implementations include PostgreSQL and an in-memory table seeded with the
// default Kerala markets. Both are read-only from the engine's point of view.
package store

import (
	"context"
	"strings"

	"github.com/agrostack/mandi-engine/internal/model"
)

// Directory lists markets with resolvable coordinates.
type Directory interface {
	// ListMarkets returns all known markets in a stable order.
	ListMarkets(ctx context.Context) ([]model.KnownMarket, error)
}

// Resolve matches a feed market name against the directory. An exact
// (case-insensitive) name wins; otherwise the first known market whose name
// is contained in the feed name is used, so "Kottayam APMC" resolves to
// "Kottayam".
func Resolve(markets []model.KnownMarket, feedMarket string) (model.KnownMarket, bool) {
	name := strings.ToLower(strings.TrimSpace(feedMarket))
	if name == "" {
		return model.KnownMarket{}, false
	}
	for _, m := range markets {
		if strings.ToLower(m.Name) == name {
			return m, true
		}
	}
	for _, m := range markets {
		if key := strings.ToLower(m.Name); key != "" && strings.Contains(name, key) {
			return m, true
		}
	}
	return model.KnownMarket{}, false
}
