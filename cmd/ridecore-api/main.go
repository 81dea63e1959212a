// README: Entry point; loads config, selects the storage backend, wires services and serves HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	"ridecore/internal/config"
	httptransport "ridecore/internal/http"
	"ridecore/internal/http/handlers"
	"ridecore/internal/infra"
	"ridecore/internal/logging"
	"ridecore/internal/maps"
	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/location"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/modules/ranking"
	"ridecore/internal/storage"
	"ridecore/internal/storage/firestore"
	"ridecore/internal/storage/memory"
	"ridecore/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ridecore-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var app *firebase.App
	if cfg.Firebase.ProjectID != "" {
		a, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
		if err != nil {
			return fmt.Errorf("firebase init: %w", err)
		}
		app = a
	}

	repo, closeRepo, err := openRepository(ctx, cfg, app, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	distance, err := newDistanceProvider(cfg, rdb, log)
	if err != nil {
		return err
	}

	var cache location.Cache
	if rdb != nil {
		cache = location.NewStore(rdb)
	}
	var mirror location.Mirror
	if app != nil && cfg.Firebase.DatabaseURL != "" {
		m, err := location.NewFirebaseMirror(ctx, app)
		if err != nil {
			return fmt.Errorf("realtime database: %w", err)
		}
		mirror = m
	}
	locations := location.NewService(cache, mirror, location.Config{
		DriverTTL:    cfg.Location.DriverTTL,
		PassengerTTL: cfg.Location.PassengerTTL,
	}, log)

	var routes handlers.Router
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		routes = rs
	}

	var verifier infra.TokenVerifier
	if cfg.Auth.Enabled {
		verifier, err = infra.NewFirebaseVerifier(ctx, app)
		if err != nil {
			return fmt.Errorf("firebase auth: %w", err)
		}
	}

	pricingSvc := pricing.NewService(cfg.Pricing)
	bookingSvc := booking.NewService(repo, pricingSvc, distance, booking.Config{ProviderTimeout: cfg.Maps.Timeout}, log)
	rankingSvc := ranking.NewService(distance, pricingSvc, cfg.Maps.Timeout, log).WithDirectory(repo, locations)

	router := httptransport.NewRouter(httptransport.Deps{
		Bookings:   bookingSvc,
		Drivers:    driver.NewService(repo, locations, log),
		Passengers: passenger.NewService(repo, locations, log),
		Ranking:    rankingSvc,
		Routes:     routes,
		Verifier:   verifier,
		Log:        log,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Backend, "auth", cfg.Auth.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, cfg config.Config, app *firebase.App, log *slog.Logger) (storage.Repository, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return store, pool.Close, nil
	case config.BackendFirestore:
		client, err := infra.NewFirestore(ctx, app)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore: %w", err)
		}
		return firestore.NewStore(client), func() { _ = client.Close() }, nil
	default:
		store := memory.NewStore()
		if cfg.Storage.SeedDemo {
			if err := store.SeedDemo(ctx); err != nil {
				return nil, nil, fmt.Errorf("seed demo data: %w", err)
			}
			log.Info("demo data loaded")
		}
		return store, func() {}, nil
	}
}

// newDistanceProvider prefers Google Distance Matrix with a straight-line
// fallback, memoised in Redis when available.
func newDistanceProvider(cfg config.Config, rdb *redis.Client, log *slog.Logger) (maps.Provider, error) {
	straight := maps.HaversineProvider{SpeedKmh: cfg.Maps.AverageSpeedKmh}
	if cfg.Maps.APIKey == "" {
		log.Warn("no maps API key configured; using straight-line distance estimates")
		return straight, nil
	}
	google, err := maps.NewGoogleProvider(cfg.Maps.APIKey)
	if err != nil {
		return nil, err
	}
	var p maps.Provider = &maps.FallbackProvider{Primary: google, Secondary: straight, Log: log}
	if rdb != nil {
		p = maps.NewCachedProvider(p, rdb, cfg.Maps.CacheTTL, log)
	}
	return p, nil
}
