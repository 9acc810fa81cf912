// Package crop handles crop request validation and translation of internal
// crop names into the commodity vocabulary used by the market price feed.
package crop

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput marks a request the engines refuse. It is returned before
// any upstream call is made.
var ErrInvalidInput = errors.New("crop: invalid input")

// feedNames maps internal crop names to the commodity names used by the
// agmarknet feed. Names without an entry pass through unchanged.
var feedNames = map[string]string{
	"Rubber":         "Natural Rubber",
	"Black Pepper":   "Black pepper",
	"Cardamom":       "Cardamoms",
	"Coffee Robusta": "Coffee",
	"Arecanut":       "Arecanut(Betelnut/Supari)",
	"Ginger":         "Ginger(Dry)",
	"Turmeric":       "Turmeric",
	"Nutmeg":         "Nutmeg",
	"Cocoa":          "Cocoa Beans",
}

// TickerCrops are the crops shown on the live market ticker.
var TickerCrops = []string{"Rubber", "Black Pepper", "Cardamom", "Coffee Robusta", "Arecanut"}

// FeedName returns the feed commodity name for a crop.
func FeedName(cropName string) string {
	if name, ok := feedNames[cropName]; ok {
		return name
	}
	return cropName
}

// Request is a validated crop/quantity pair.
type Request struct {
	Name     string  `json:"crop_name"`
	Quantity float64 `json:"quantity"`
}

// ParseRequest trims and validates a crop name and quantity.
func ParseRequest(name string, quantity float64) (*Request, error) {
	clean, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	return &Request{Name: clean, Quantity: quantity}, nil
}

// ValidateName returns the trimmed crop name or ErrInvalidInput if empty.
func ValidateName(name string) (string, error) {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return "", fmt.Errorf("%w: crop name is required", ErrInvalidInput)
	}
	return clean, nil
}

// ValidateQuantity rejects non-positive and non-finite quantities.
func ValidateQuantity(quantity float64) error {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidInput, quantity)
	}
	return nil
}

// ValidatePrice rejects non-positive and non-finite prices.
func ValidatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %v", ErrInvalidInput, price)
	}
	return nil
}
