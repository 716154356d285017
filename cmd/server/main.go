package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/cph-deal-finder/internal/catalog"
	"github.com/pauljones0/cph-deal-finder/internal/config"
	"github.com/pauljones0/cph-deal-finder/internal/geo"
	"github.com/pauljones0/cph-deal-finder/internal/pipeline"
	"github.com/pauljones0/cph-deal-finder/internal/processor"
	"github.com/pauljones0/cph-deal-finder/internal/server"
	"github.com/pauljones0/cph-deal-finder/internal/storage"
	"github.com/pauljones0/cph-deal-finder/internal/util"
)

func main() {
	slog.Info("Starting CPH Deal Finder server...")
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	kv, fallback := storage.OpenOrMemory(ctx, storage.Options{
		Backend:   cfg.CacheBackend,
		Path:      cfg.CachePath,
		RedisURL:  cfg.RedisURL,
		ProjectID: cfg.ProjectID,
	})
	defer kv.Close()
	if !fallback {
		slog.Info("Cache backend ready", "backend", cfg.CacheBackend)
	}

	locations := storage.NewLocationCache(kv)
	resolver := geo.NewResolver(
		geo.LoadGazetteer(cfg.GazetteerPath),
		locations,
		geo.NewNominatim(cfg.GeocoderURL, cfg.GeocoderUserAgent),
		geo.NewPacer(cfg.GeocodeDelay),
	)
	warmer := geo.NewWarmer(ctx, resolver)

	client := catalog.New(cfg.CatalogAPIURL, catalog.Options{
		Retry:      util.RetryPolicy{MaxRetries: cfg.CatalogRetries, BaseDelay: util.DefaultRetryPolicy.BaseDelay},
		Revalidate: cfg.CatalogRevalidate,
	})
	junk := pipeline.NewJunkFilter(pipeline.LoadJunkRules(cfg.JunkRulesPath))
	p := processor.New(client, resolver, warmer, junk, processor.Options{
		Limit:         cfg.CatalogLimit,
		ExpiringHours: cfg.ExpiringHours,
	})

	srv := server.New(p, client, locationService{Resolver: resolver, warmer: warmer}, locations, storage.NewPreferences(kv), server.Options{
		PageSize:    cfg.PageSize,
		SessionIdle: cfg.SessionIdle,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening on port", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		srv.RunSweeper(gctx)
		return nil
	})
	// Graceful shutdown on SIGTERM/SIGINT
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		warmer.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

// locationService clears the warmer together with the resolver it feeds.
type locationService struct {
	*geo.Resolver
	warmer *geo.Warmer
}

func (l locationService) Clear(ctx context.Context) error {
	return l.warmer.Clear(ctx)
}
