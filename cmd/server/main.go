package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/x402/clearinghouse/internal/engine"
	"github.com/x402/clearinghouse/internal/limit"
	"github.com/x402/clearinghouse/internal/metrics"
	"github.com/x402/clearinghouse/internal/model"
	"github.com/x402/clearinghouse/internal/settle"
	"github.com/x402/clearinghouse/internal/store"
	"github.com/x402/clearinghouse/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Asset catalog ---
	ctx := context.Background()
	assets, err := st.ListAssets(ctx)
	if err != nil {
		slog.Error("failed to load asset catalog", "err", err)
		os.Exit(1)
	}
	if len(assets) == 0 {
		seeded := seedAssetFromEnv()
		if err := st.CreateAsset(ctx, seeded); err != nil {
			slog.Error("failed to seed asset", "err", err)
			os.Exit(1)
		}
		assets = []model.Asset{*seeded}
		slog.Info("seeded default asset", "asset", seeded.ID, "base_price", seeded.BasePrice.String())
	}

	// --- Negotiation engines, one per listed asset ---
	registry := engine.NewRegistry()
	for _, a := range assets {
		if !a.Active {
			continue
		}
		e, err := engine.New(engine.Config{
			AssetID:     a.ID,
			BasePrice:   a.BasePrice,
			MinPrice:    a.MinPrice,
			MaxDiscount: a.MaxDiscount,
			Inventory:   a.Inventory,
		})
		if err != nil {
			slog.Error("invalid asset configuration", "asset", a.ID, "err", err)
			os.Exit(1)
		}
		registry.Register(e)
		metrics.InventoryUnits.WithLabelValues(a.ID).Set(float64(a.Inventory))
		slog.Info("asset listed", "asset", a.ID, "inventory", a.Inventory)
	}
	slog.Info("engines ready", "assets", registry.AssetIDs())

	// --- Position limits ---
	maxPerAsset := envInt64("MAX_UNITS_PER_ASSET", 1000)
	maxTotal := envInt64("MAX_UNITS_TOTAL", 5000)
	limiter := limit.NewAgentLimiter(maxPerAsset, maxTotal)

	// --- Settlement relay ---
	settler := settle.NewRelay()

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Trade service ---
	tradeSvc := trade.NewService(registry, st, limiter, settler, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", "X-402-Price, X-402-Status, X-402-Message, X-402-Expires, X-402-Session")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"clearinghouse"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time negotiation and settlement events.
		r.Get("/ws", wsHub.HandleWS)

		// Asset catalog.
		r.Get("/assets", tradeSvc.ListAssets)
		r.Get("/assets/{assetID}", tradeSvc.GetAsset)
		r.Get("/assets/{assetID}/deals", tradeSvc.GetDeals)

		// Bid negotiation and settlement.
		r.Post("/trade/negotiate", tradeSvc.Negotiate)
		r.Get("/trade/negotiate/stats", tradeSvc.GetStats)
		r.Post("/trade/settle", tradeSvc.Settle)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("clearinghouse listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down clearinghouse...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("clearinghouse stopped")
}

// seedAssetFromEnv builds the default listing when the catalog is empty.
func seedAssetFromEnv() *model.Asset {
	return &model.Asset{
		ID:          envStr("ASSET_ID", "DATA-FEED-01"),
		Name:        envStr("ASSET_NAME", "Premium Data Feed Access"),
		BasePrice:   envDecimal("BASE_PRICE", "100"),
		MinPrice:    envDecimal("MIN_PRICE", "90"),
		MaxDiscount: envDecimal("MAX_DISCOUNT", "0.10"),
		Inventory:   envInt64("INVENTORY", 1000),
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Error("invalid integer env var", "key", key, "value", v)
		os.Exit(1)
	}
	return n
}

func envDecimal(key, def string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		slog.Error("invalid decimal env var", "key", key, "value", v)
		os.Exit(1)
	}
	return d
}
