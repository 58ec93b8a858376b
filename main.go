package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/msomdec/movie-catalog/internal/blob"
	"github.com/msomdec/movie-catalog/internal/config"
	"github.com/msomdec/movie-catalog/internal/domain"
	"github.com/msomdec/movie-catalog/internal/handler"
	"github.com/msomdec/movie-catalog/internal/repository/mongodb"
	"github.com/msomdec/movie-catalog/internal/repository/sqlite"
	"github.com/msomdec/movie-catalog/internal/service"
)

func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logOpts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	db, movies, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open movie store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("failed to prepare movie store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	slog.Info("movie store ready", "backend", cfg.Store.Backend)

	blobs, err := blob.NewLocal(cfg.Uploads.Dir, cfg.Uploads.URLPrefix)
	if err != nil {
		slog.Error("failed to prepare upload directory", "error", err)
		os.Exit(1)
	}
	slog.Info("serving uploads", "dir", blobs.Dir(), "prefix", blobs.Prefix())

	movieService := service.NewMovieService(movies, blobs, service.MovieServiceOptions{
		RequireImage: cfg.RequireImage(),
		MaxImageSize: cfg.Uploads.MaxBytes,
	}).WithRecorder(handler.MetricsRecorder{})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, movieService, blobs, cfg.Uploads.MaxBytes)

	var routes http.Handler = mux
	if cfg.Server.WriteRatePerMinute > 0 {
		routes = handler.NewWriteLimiter(ctx, cfg.Server.WriteRatePerMinute, cfg.Server.WriteBurst).Limit(mux)
		slog.Info("write rate limit enabled", "per_minute", cfg.Server.WriteRatePerMinute, "burst", cfg.Server.WriteBurst)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.Wrap(routes),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore connects the configured backend.
func openStore(cfg *config.Config) (domain.Database, domain.MovieRepository, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := sqlite.New(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Movies(), nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Mongo.ConnectTimeout+5*time.Second)
		defer cancel()
		db, err := mongodb.Connect(ctx, mongodb.Options{
			URI:            cfg.Store.Mongo.URI,
			Database:       cfg.Store.Mongo.Database,
			Collection:     cfg.Store.Mongo.Collection,
			ConnectTimeout: cfg.Store.Mongo.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return db, db.Movies(), nil
	}
}
