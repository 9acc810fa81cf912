package store

import (
	"context"
	"errors"
	"testing"
)

func TestResolve_ExactMatch(t *testing.T) {
	m, ok := Resolve(DefaultMarkets(), "kottayam")
	if !ok {
		t.Fatal("expected Kottayam to resolve")
	}
	if m.Name != "Kottayam" {
		t.Errorf("expected Kottayam, got %s", m.Name)
	}
}

func TestResolve_SubstringMatch(t *testing.T) {
	m, ok := Resolve(DefaultMarkets(), "Kanjirappally APMC")
	if !ok {
		t.Fatal("expected APMC suffix to resolve")
	}
	if m.Coordinate.Latitude != 9.5544 {
		t.Errorf("expected Kanjirappally coordinates, got %+v", m.Coordinate)
	}
}

func TestResolve_Unknown(t *testing.T) {
	tests := []string{"", "  ", "Mumbai Vashi", "Pala"}
	for _, name := range tests {
		if _, ok := Resolve(DefaultMarkets(), name); ok {
			t.Errorf("expected %q not to resolve", name)
		}
	}
}

func TestMemoryDirectory_DefaultTable(t *testing.T) {
	d := NewMemoryDirectory(nil)
	markets, err := d.ListMarkets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markets) != 10 {
		t.Errorf("expected 10 default markets, got %d", len(markets))
	}
}

func TestMemoryDirectory_ReturnsCopies(t *testing.T) {
	d := NewMemoryDirectory(nil)
	markets, _ := d.ListMarkets(context.Background())
	markets[0].Name = "mutated"

	again, _ := d.ListMarkets(context.Background())
	if again[0].Name == "mutated" {
		t.Error("directory should not expose its internal table")
	}
}

// --- scanMarkets ---

type fakeRows struct {
	data [][]interface{}
	i    int
	err  error
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.data)
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.data[r.i-1]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*float64) = row[1].(float64)
	*dest[2].(*float64) = row[2].(float64)
	return nil
}

func (r *fakeRows) Err() error { return r.err }

func TestScanMarkets(t *testing.T) {
	rows := &fakeRows{data: [][]interface{}{
		{"Kottayam", 9.5916, 76.5221},
		{"Palai", 9.7118, 76.6853},
	}}
	markets, err := scanMarkets(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markets) != 2 || markets[1].Name != "Palai" || markets[1].Coordinate.Longitude != 76.6853 {
		t.Errorf("unexpected scan result: %+v", markets)
	}
}

func TestScanMarkets_RowsError(t *testing.T) {
	boom := errors.New("boom")
	_, err := scanMarkets(&fakeRows{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("expected rows error to propagate, got %v", err)
	}
}
