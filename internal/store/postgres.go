package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrostack/mandi-engine/internal/model"
)

// PostgresDirectory implements Directory over a `mandis` table:
//
//	CREATE TABLE mandis (name TEXT PRIMARY KEY, lat DOUBLE PRECISION NOT NULL, lon DOUBLE PRECISION NOT NULL);
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a PostgreSQL-backed directory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) ListMarkets(ctx context.Context) ([]model.KnownMarket, error) {
	rows, err := d.pool.Query(ctx, `SELECT name, lat, lon FROM mandis ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list mandis: %w", err)
	}
	defer rows.Close()

	return scanMarkets(rows)
}

// pgxRows is the subset of pgx.Rows used by scanMarkets.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanMarkets(rows pgxRows) ([]model.KnownMarket, error) {
	var markets []model.KnownMarket
	for rows.Next() {
		var m model.KnownMarket
		if err := rows.Scan(&m.Name, &m.Coordinate.Latitude, &m.Coordinate.Longitude); err != nil {
			return nil, fmt.Errorf("scan mandi: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}
