package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agrostack/mandi-engine/internal/advisor"
	"github.com/agrostack/mandi-engine/internal/api"
	"github.com/agrostack/mandi-engine/internal/config"
	"github.com/agrostack/mandi-engine/internal/geo"
	"github.com/agrostack/mandi-engine/internal/mandi"
	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/pricefeed"
	"github.com/agrostack/mandi-engine/internal/routing"
	"github.com/agrostack/mandi-engine/internal/scoring"
	"github.com/agrostack/mandi-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Mandi directory ---
	var directory store.Directory
	if cfg.Storage.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		directory = store.NewPostgresDirectory(pool)
		slog.Info("connected to PostgreSQL mandi directory")
	} else {
		slog.Warn("DATABASE_URL not set, using built-in mandi table")
		directory = store.NewMemoryDirectory(nil)
	}

	// --- Price feed ---
	var source pricefeed.Source
	if cfg.PriceFeed.APIKey != "" {
		source = pricefeed.NewDataGovClient(pricefeed.DataGovConfig{
			BaseURL:    cfg.PriceFeed.BaseURL,
			ResourceID: cfg.PriceFeed.ResourceID,
			APIKey:     cfg.PriceFeed.APIKey,
			State:      cfg.PriceFeed.State,
			Timeout:    cfg.Upstream.Timeout,
		})

		// Wrap with Redis read-through cache if configured.
		if cfg.Storage.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.Storage.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			source = pricefeed.NewCachedSource(source, rdb, cfg.Storage.PriceCacheTTL)
			slog.Info("Redis price cache enabled", "ttl", cfg.Storage.PriceCacheTTL)
		}
	} else {
		slog.Warn("DATA_GOV_API_KEY not set, serving synthetic prices")
	}

	prices := pricefeed.NewProvider(source, directory, pricefeed.Config{
		FallbackPrice:  cfg.PriceFeed.FallbackPrice,
		CandidateLimit: cfg.PriceFeed.Limit,
		Seed:           cfg.PriceFeed.Seed,
	})

	// --- Routing ---
	var router routing.Router
	if cfg.Upstream.RouterURL != "" {
		router = routing.NewOSRMClient(cfg.Upstream.RouterURL, cfg.Upstream.Timeout)
	}
	estimator, err := routing.NewEstimator(router, routing.Params{
		WindingFactor: cfg.Routing.WindingFactor,
		AverageKmh:    cfg.Routing.AverageKmh,
		Timeout:       cfg.Upstream.Timeout,
	})
	if err != nil {
		slog.Error("routing setup failed", "err", err)
		os.Exit(1)
	}

	// --- Engines ---
	recommender := mandi.NewEngine(prices, estimator, mandi.Config{
		CostPerKmPerUnit: cfg.Recommend.CostPerKmPerUnit,
		MaxRouted:        cfg.Recommend.MaxRouted,
	})

	costs := scoring.DefaultCostModel()
	costs.FuelLitresPerKm = cfg.Scoring.FuelLitresPerKm
	costs.FuelPrice = cfg.Scoring.FuelPrice
	costs.TollFee = cfg.Scoring.TollFee
	costs.TollThresholdKm = cfg.Scoring.TollThresholdKm
	costs.LaborCost = cfg.Scoring.LaborCost
	costs.DepreciationPerKm = cfg.Scoring.DepreciationPerKm
	scorer := scoring.NewEngine(prices, costs, cfg.PriceFeed.FallbackPrice)

	advisorParams := advisor.DefaultParams()
	advisorParams.Volatility = cfg.Advisor.Volatility
	advisorParams.StoragePerUnitMonth = cfg.Advisor.StoragePerUnitMonth
	advisorParams.CostRatio = cfg.Advisor.CostRatio
	holdSell, err := advisor.New(advisorParams)
	if err != nil {
		slog.Error("advisor setup failed", "err", err)
		os.Exit(1)
	}
	active := holdSell.Params()
	slog.Info("hold-vs-sell advisor ready",
		"volatility", active.Volatility,
		"storage_per_unit_month", active.StoragePerUnitMonth,
		"cost_ratio", active.CostRatio,
		"growth_3m", active.ThreeMonthGrowth,
		"growth_6m", active.SixMonthGrowth)

	geocoder := geo.NewNominatimClient(cfg.Upstream.GeocoderURL, cfg.Upstream.UserAgent, cfg.Upstream.Timeout)

	// --- Ticker hub ---
	tickerHub := api.NewTickerHub(prices, cfg.Ticker.Interval)
	go tickerHub.Run(ctx)

	svc := api.NewService(geocoder, prices, recommender, scorer, holdSell, tickerHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CorsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"mandi-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	svc.Mount(r)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("mandi-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down mandi-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("mandi-engine stopped")
}
