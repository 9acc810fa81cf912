// Package geo provides great-circle distance and free-text geocoding.
package geo

import (
	"fmt"
	"math"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/model"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b model.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// ValidateCoordinate rejects non-finite or out-of-range coordinates with
// crop.ErrInvalidInput.
func ValidateCoordinate(c model.Coordinate) error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		c.Latitude < -90 || c.Latitude > 90 ||
		c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: coordinate (%v, %v) out of range", crop.ErrInvalidInput, c.Latitude, c.Longitude)
	}
	return nil
}
