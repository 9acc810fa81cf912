// Package api provides the caller-facing HTTP handlers for the mandi engine:
// geocoding, prices, the live ticker, mandi recommendations, market scores
// and the hold-vs-sell advisor.
//
// Only invalid input (400) and unknown locations (404) are reported as
// errors. Upstream trouble shows up as provenance on a successful response.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/geo"
	"github.com/agrostack/mandi-engine/internal/model"
)

// MaxLookback bounds the history window a caller may request.
const MaxLookback = 365

// PriceService serves prices and the ticker.
type PriceService interface {
	CurrentPrice(ctx context.Context, cropName string) model.PriceQuote
	HistoricalPrices(ctx context.Context, cropName string, lookback int) model.PriceHistory
	Ticker(ctx context.Context) []model.TickerEntry
}

// Recommender is the routed recommendation engine.
type Recommender interface {
	FindBestMandis(ctx context.Context, cropName string, quantity float64, origin model.Coordinate) (*model.MandiRanking, error)
}

// Scorer is the offline scoring engine.
type Scorer interface {
	CalculateMarketScores(ctx context.Context, cropName string, quantity float64, origin model.Coordinate, baseline *float64) ([]model.MarketScore, error)
	BestMarketPreview(ctx context.Context, cropName string, baseline *float64) (*model.MarketPreview, error)
}

// HoldSellAdvisor is the decision support engine.
type HoldSellAdvisor interface {
	ProjectHoldVsSell(currentPrice, quantity float64) (*model.HoldSellReport, error)
}

// Service handles the mandi engine HTTP API. It is stateless apart from
// the optional ticker hub.
type Service struct {
	geocoder geo.Geocoder
	prices   PriceService
	mandis   Recommender
	scores   Scorer
	advisor  HoldSellAdvisor
	hub      *TickerHub // optional
}

// NewService creates the API service. Pass nil for hub if the WebSocket
// ticker is not needed.
func NewService(geocoder geo.Geocoder, prices PriceService, mandis Recommender, scores Scorer, advisor HoldSellAdvisor, hub *TickerHub) *Service {
	return &Service{
		geocoder: geocoder,
		prices:   prices,
		mandis:   mandis,
		scores:   scores,
		advisor:  advisor,
		hub:      hub,
	}
}

// Mount registers the /api/v1 routes on r.
func (s *Service) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/geocode", s.Geocode)

		r.Get("/prices/{crop}", s.GetPrice)
		r.Get("/prices/{crop}/history", s.GetPriceHistory)

		r.Get("/ticker", s.GetTicker)
		if s.hub != nil {
			r.Get("/ticker/ws", s.hub.HandleWS)
		}

		r.Post("/mandis/recommend", s.RecommendMandis)
		r.Post("/mandis/scores", s.ScoreMarkets)
		r.Get("/mandis/preview", s.PreviewBestMarket)

		r.Post("/advisor/hold-sell", s.HoldOrSell)
	})
}

// --- Request/Response types ---

// LocationRequest identifies the seller: a crop, a quantity and either
// coordinates or a free-text location.
type LocationRequest struct {
	CropName      string   `json:"crop_name"`
	Quantity      float64  `json:"quantity"`
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
	LocationQuery string   `json:"location_query,omitempty"`
}

// ScoresRequest is the JSON body for POST /mandis/scores.
type ScoresRequest struct {
	LocationRequest
	BaselinePrice *float64 `json:"baseline_price,omitempty"`
}

// HoldSellRequest is the JSON body for POST /advisor/hold-sell.
type HoldSellRequest struct {
	CurrentPrice float64 `json:"current_price"`
	Quantity     float64 `json:"quantity"`
}

// Origin is the resolved seller location echoed in responses.
type Origin struct {
	model.Coordinate
	DisplayName string `json:"display_name,omitempty"`
}

// RecommendResponse is returned from POST /mandis/recommend.
type RecommendResponse struct {
	RequestID string `json:"request_id"`
	Origin    Origin `json:"origin"`
	*model.MandiRanking
}

// ScoresResponse is returned from POST /mandis/scores.
type ScoresResponse struct {
	RequestID string              `json:"request_id"`
	Origin    Origin              `json:"origin"`
	CropName  string              `json:"crop_name"`
	Quantity  float64             `json:"quantity"`
	Scores    []model.MarketScore `json:"scores"`
}

// --- HTTP Handlers ---

// Geocode handles GET /api/v1/geocode?q=
func (s *Service) Geocode(w http.ResponseWriter, r *http.Request) {
	place, err := s.geocoder.Geocode(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Origin{Coordinate: place.Coordinate, DisplayName: place.DisplayName})
}

// GetPrice handles GET /api/v1/prices/{crop}
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	name, err := crop.ValidateName(chi.URLParam(r, "crop"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.prices.CurrentPrice(r.Context(), name))
}

// GetPriceHistory handles GET /api/v1/prices/{crop}/history?lookback=30
func (s *Service) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	name, err := crop.ValidateName(chi.URLParam(r, "crop"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	lookback := 0
	if raw := r.URL.Query().Get("lookback"); raw != "" {
		lookback, err = strconv.Atoi(raw)
		if err != nil || lookback <= 0 || lookback > MaxLookback {
			writeError(w, fmt.Sprintf("lookback must be an integer between 1 and %d", MaxLookback), http.StatusBadRequest)
			return
		}
	}

	history := s.prices.HistoricalPrices(r.Context(), name, lookback)
	if history.Points == nil {
		history.Points = []model.MarketPricePoint{}
	}
	writeJSON(w, http.StatusOK, history)
}

// GetTicker handles GET /api/v1/ticker
func (s *Service) GetTicker(w http.ResponseWriter, r *http.Request) {
	entries := s.prices.Ticker(r.Context())
	if entries == nil {
		entries = []model.TickerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// RecommendMandis handles POST /api/v1/mandis/recommend
func (s *Service) RecommendMandis(w http.ResponseWriter, r *http.Request) {
	var body LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Validate before any upstream call.
	req, err := crop.ParseRequest(body.CropName, body.Quantity)
	if err != nil {
		writeFailure(w, err)
		return
	}
	origin, err := s.resolveOrigin(r.Context(), body)
	if err != nil {
		writeFailure(w, err)
		return
	}

	ranking, err := s.mandis.FindBestMandis(r.Context(), req.Name, req.Quantity, origin.Coordinate)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if ranking.Recommendations == nil {
		ranking.Recommendations = []model.MandiRecommendation{}
	}

	writeJSON(w, http.StatusOK, RecommendResponse{
		RequestID:    uuid.New().String(),
		Origin:       origin,
		MandiRanking: ranking,
	})
}

// ScoreMarkets handles POST /api/v1/mandis/scores
func (s *Service) ScoreMarkets(w http.ResponseWriter, r *http.Request) {
	var body ScoresRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req, err := crop.ParseRequest(body.CropName, body.Quantity)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if body.BaselinePrice != nil {
		if err := crop.ValidatePrice(*body.BaselinePrice); err != nil {
			writeFailure(w, err)
			return
		}
	}
	origin, err := s.resolveOrigin(r.Context(), body.LocationRequest)
	if err != nil {
		writeFailure(w, err)
		return
	}

	scores, err := s.scores.CalculateMarketScores(r.Context(), req.Name, req.Quantity, origin.Coordinate, body.BaselinePrice)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ScoresResponse{
		RequestID: uuid.New().String(),
		Origin:    origin,
		CropName:  req.Name,
		Quantity:  req.Quantity,
		Scores:    scores,
	})
}

// PreviewBestMarket handles GET /api/v1/mandis/preview?crop=&baseline_price=
func (s *Service) PreviewBestMarket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var baseline *float64
	if raw := q.Get("baseline_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, "baseline_price must be a number", http.StatusBadRequest)
			return
		}
		baseline = &v
	}

	preview, err := s.scores.BestMarketPreview(r.Context(), q.Get("crop"), baseline)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// HoldOrSell handles POST /api/v1/advisor/hold-sell
func (s *Service) HoldOrSell(w http.ResponseWriter, r *http.Request) {
	var req HoldSellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	report, err := s.advisor.ProjectHoldVsSell(req.CurrentPrice, req.Quantity)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// resolveOrigin takes explicit coordinates when both are given, otherwise
// geocodes the location query.
func (s *Service) resolveOrigin(ctx context.Context, req LocationRequest) (Origin, error) {
	if req.Lat != nil && req.Lon != nil {
		c := model.Coordinate{Latitude: *req.Lat, Longitude: *req.Lon}
		if err := geo.ValidateCoordinate(c); err != nil {
			return Origin{}, err
		}
		return Origin{Coordinate: c}, nil
	}
	if strings.TrimSpace(req.LocationQuery) == "" {
		return Origin{}, fmt.Errorf("%w: lat/lon or location_query is required", crop.ErrInvalidInput)
	}

	place, err := s.geocoder.Geocode(ctx, req.LocationQuery)
	if err != nil {
		return Origin{}, err
	}
	return Origin{Coordinate: place.Coordinate, DisplayName: place.DisplayName}, nil
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeFailure maps an engine error to its HTTP status.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crop.ErrInvalidInput):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, geo.ErrNotFound):
		writeError(w, "location not found", http.StatusNotFound)
	default:
		slog.Error("request failed", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
