package crop

import (
	"errors"
	"math"
	"testing"
)

func TestFeedName_Mapped(t *testing.T) {
	tests := map[string]string{
		"Rubber":         "Natural Rubber",
		"Black Pepper":   "Black pepper",
		"Coffee Robusta": "Coffee",
		"Cocoa":          "Cocoa Beans",
	}
	for in, want := range tests {
		if got := FeedName(in); got != want {
			t.Errorf("FeedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeedName_Passthrough(t *testing.T) {
	if got := FeedName("Tomato"); got != "Tomato" {
		t.Errorf("expected unmapped name to pass through, got %q", got)
	}
}

func TestParseRequest_Valid(t *testing.T) {
	req, err := ParseRequest("  Rubber ", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Name != "Rubber" {
		t.Errorf("expected trimmed name Rubber, got %q", req.Name)
	}
	if req.Quantity != 100 {
		t.Errorf("expected quantity 100, got %v", req.Quantity)
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		crop     string
		quantity float64
	}{
		{"empty crop", "", 10},
		{"blank crop", "   ", 10},
		{"zero quantity", "Rubber", 0},
		{"negative quantity", "Rubber", -5},
		{"NaN quantity", "Rubber", math.NaN()},
		{"infinite quantity", "Rubber", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.crop, tt.quantity)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidatePrice(t *testing.T) {
	if err := ValidatePrice(100); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, p := range []float64{0, -1, math.NaN()} {
		if err := ValidatePrice(p); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidatePrice(%v): expected ErrInvalidInput, got %v", p, err)
		}
	}
}

func TestErrInvalidInput_PackagePrefix(t *testing.T) {
	_, err := ParseRequest("", 1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := ErrInvalidInput.Error(); got != "crop: invalid input" {
		t.Errorf("unexpected sentinel message %q", got)
	}
}
