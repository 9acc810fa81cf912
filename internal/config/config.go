// Package config loads the mandi engine configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	PriceFeed PriceFeedConfig
	Upstream  UpstreamConfig
	Routing   RoutingConfig
	Recommend RecommendConfig
	Scoring   ScoringConfig
	Advisor   AdvisorConfig
	Ticker    TickerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// StorageConfig holds optional backing services. Empty URLs disable them.
type StorageConfig struct {
	DatabaseURL   string
	RedisURL      string
	PriceCacheTTL time.Duration
}

// PriceFeedConfig holds the agmarknet feed settings.
type PriceFeedConfig struct {
	BaseURL       string
	ResourceID    string
	APIKey        string
	State         string
	Limit         int
	FallbackPrice float64
	Seed          int64
}

// UpstreamConfig holds geocoder and router endpoints.
type UpstreamConfig struct {
	GeocoderURL string
	RouterURL   string
	UserAgent   string
	Timeout     time.Duration
}

// RoutingConfig holds the route approximation parameters.
type RoutingConfig struct {
	WindingFactor float64
	AverageKmh    float64
}

// RecommendConfig holds the recommendation engine parameters.
type RecommendConfig struct {
	CostPerKmPerUnit float64
	MaxRouted        int
}

// ScoringConfig holds the scoring engine cost model.
type ScoringConfig struct {
	FuelLitresPerKm   float64
	FuelPrice         float64
	TollFee           float64
	TollThresholdKm   float64
	LaborCost         float64
	DepreciationPerKm float64
}

// AdvisorConfig holds the hold-vs-sell model constants.
type AdvisorConfig struct {
	Volatility          float64
	StoragePerUnitMonth float64
	CostRatio           float64
}

// TickerConfig holds the live ticker settings.
type TickerConfig struct {
	Interval time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment variables
// take precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	config := Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			CorsOrigins:     getEnvAsSlice("CORS_ORIGINS", []string{"*"}),
		},
		Storage: StorageConfig{
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			RedisURL:      getEnv("REDIS_URL", ""),
			PriceCacheTTL: getEnvAsDuration("PRICE_CACHE_TTL", time.Hour),
		},
		PriceFeed: PriceFeedConfig{
			BaseURL:       getEnv("PRICE_FEED_URL", "https://api.data.gov.in"),
			ResourceID:    getEnv("PRICE_FEED_RESOURCE", "9ef84268-d588-465a-a308-a864a43d0070"),
			APIKey:        getEnv("DATA_GOV_API_KEY", ""),
			State:         getEnv("PRICE_FEED_STATE", "Kerala"),
			Limit:         getEnvAsInt("PRICE_FEED_LIMIT", 20),
			FallbackPrice: getEnvAsFloat("FALLBACK_PRICE", 180),
			Seed:          int64(getEnvAsInt("SYNTHETIC_SEED", 0)),
		},
		Upstream: UpstreamConfig{
			GeocoderURL: getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			RouterURL:   getEnv("ROUTER_URL", "http://router.project-osrm.org"),
			UserAgent:   getEnv("HTTP_USER_AGENT", "AgroStack/1.0"),
			Timeout:     getEnvAsDuration("UPSTREAM_TIMEOUT", 5*time.Second),
		},
		Routing: RoutingConfig{
			WindingFactor: getEnvAsFloat("ROAD_WINDING_FACTOR", 1.3),
			AverageKmh:    getEnvAsFloat("AVERAGE_SPEED_KMH", 40),
		},
		Recommend: RecommendConfig{
			CostPerKmPerUnit: getEnvAsFloat("TRANSPORT_COST_PER_KM_UNIT", 0.5),
			MaxRouted:        getEnvAsInt("MAX_ROUTED_CANDIDATES", 5),
		},
		Scoring: ScoringConfig{
			FuelLitresPerKm:   getEnvAsFloat("SCORING_FUEL_LITRES_PER_KM", 0.15),
			FuelPrice:         getEnvAsFloat("SCORING_FUEL_PRICE", 105),
			TollFee:           getEnvAsFloat("SCORING_TOLL_FEE", 45),
			TollThresholdKm:   getEnvAsFloat("SCORING_TOLL_THRESHOLD_KM", 20),
			LaborCost:         getEnvAsFloat("SCORING_LABOR_COST", 500),
			DepreciationPerKm: getEnvAsFloat("SCORING_DEPRECIATION_PER_KM", 2),
		},
		Advisor: AdvisorConfig{
			Volatility:          getEnvAsFloat("HOLD_VOLATILITY", 0.12),
			StoragePerUnitMonth: getEnvAsFloat("HOLD_STORAGE_PER_UNIT_MONTH", 1.5),
			CostRatio:           getEnvAsFloat("HOLD_COST_RATIO", 0.6),
		},
		Ticker: TickerConfig{
			Interval: getEnvAsDuration("TICKER_INTERVAL", time.Minute),
		},
	}

	return config, validate(config)
}

// validate rejects settings the engines cannot run with.
func validate(config Config) error {
	var errs []error
	if config.Routing.WindingFactor <= 0 {
		errs = append(errs, fmt.Errorf("ROAD_WINDING_FACTOR must be positive, got %v", config.Routing.WindingFactor))
	}
	if config.Routing.AverageKmh <= 0 {
		errs = append(errs, fmt.Errorf("AVERAGE_SPEED_KMH must be positive, got %v", config.Routing.AverageKmh))
	}
	if config.Recommend.CostPerKmPerUnit <= 0 {
		errs = append(errs, fmt.Errorf("TRANSPORT_COST_PER_KM_UNIT must be positive, got %v", config.Recommend.CostPerKmPerUnit))
	}
	if config.Recommend.MaxRouted <= 0 {
		errs = append(errs, fmt.Errorf("MAX_ROUTED_CANDIDATES must be positive, got %d", config.Recommend.MaxRouted))
	}
	if config.PriceFeed.FallbackPrice <= 0 {
		errs = append(errs, fmt.Errorf("FALLBACK_PRICE must be positive, got %v", config.PriceFeed.FallbackPrice))
	}
	if config.PriceFeed.Limit <= 0 {
		errs = append(errs, fmt.Errorf("PRICE_FEED_LIMIT must be positive, got %d", config.PriceFeed.Limit))
	}
	if config.Advisor.Volatility < 0 {
		errs = append(errs, fmt.Errorf("HOLD_VOLATILITY must not be negative, got %v", config.Advisor.Volatility))
	}
	if config.Advisor.StoragePerUnitMonth < 0 {
		errs = append(errs, fmt.Errorf("HOLD_STORAGE_PER_UNIT_MONTH must not be negative, got %v", config.Advisor.StoragePerUnitMonth))
	}
	if config.Advisor.CostRatio <= 0 || config.Advisor.CostRatio > 1 {
		errs = append(errs, fmt.Errorf("HOLD_COST_RATIO must be in (0, 1], got %v", config.Advisor.CostRatio))
	}
	for _, c := range []struct {
		key   string
		value float64
	}{
		{"SCORING_FUEL_LITRES_PER_KM", config.Scoring.FuelLitresPerKm},
		{"SCORING_FUEL_PRICE", config.Scoring.FuelPrice},
		{"SCORING_TOLL_FEE", config.Scoring.TollFee},
		{"SCORING_TOLL_THRESHOLD_KM", config.Scoring.TollThresholdKm},
		{"SCORING_LABOR_COST", config.Scoring.LaborCost},
		{"SCORING_DEPRECIATION_PER_KM", config.Scoring.DepreciationPerKm},
	} {
		if c.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", c.key, c.value))
		}
	}
	if config.Ticker.Interval <= 0 {
		errs = append(errs, fmt.Errorf("TICKER_INTERVAL must be positive, got %v", config.Ticker.Interval))
	}
	return errors.Join(errs...)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
