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

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soilscan/soil-api/internal/artifact"
	"github.com/soilscan/soil-api/internal/config"
	"github.com/soilscan/soil-api/internal/handlers"
	"github.com/soilscan/soil-api/internal/model"
)

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, classifier := loadService(ctx, logger, cfg)
	if classifier != nil {
		defer classifier.Close()
	}

	h := handlers.NewHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handlers.Wrap("/", logger, h.Status))
	mux.HandleFunc("/health", handlers.Wrap("/health", logger, h.Health))
	mux.HandleFunc("/classes", handlers.Wrap("/classes", logger, h.Classes))
	mux.HandleFunc("/model-info", handlers.Wrap("/model-info", logger, h.ModelInfo))
	mux.HandleFunc("/predict", handlers.Wrap("/predict", logger, h.Predict))
	mux.HandleFunc("/predict-with-centroids", handlers.Wrap("/predict-with-centroids", logger, h.PredictWithCentroids))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"port", cfg.Server.Port,
		"model_loaded", svc.ModelLoaded(),
		"centroids_loaded", svc.CentroidsLoaded(),
		"classes", len(svc.Classes()))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// loadService fetches and loads the model, metadata and centroid
// artifacts. A failed model or centroid load is not fatal: the service
// starts degraded, keeps answering status and health checks, and the
// loaded flags stay false until the process restarts.
func loadService(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*model.Service, *model.ONNXClassifier) {
	meta := model.DefaultMetadata()
	if cfg.Model.Metadata != "" {
		if m, err := model.LoadMetadata(cfg.Model.Metadata); err != nil {
			logger.Warn("using built-in metadata", "path", cfg.Model.Metadata, "error", err)
		} else {
			meta = m
		}
	}

	var classifier *model.ONNXClassifier
	if err := artifact.EnsureLocal(ctx, cfg.Model.Path, cfg.Model.URL); err != nil {
		logger.Error("model artifact unavailable", "error", err)
	} else if classifier, err = model.NewONNXClassifier(cfg.Model.Path, meta); err != nil {
		logger.Error("failed to load model", "path", cfg.Model.Path, "error", err)
		classifier = nil
	} else {
		logger.Info("model loaded", "path", cfg.Model.Path, "classes", meta.Classes)
	}

	var centroids *model.CentroidTable
	if cfg.Centroids.Path == "" {
		logger.Info("centroid predictions disabled; no centroid path configured")
	} else if err := artifact.EnsureLocal(ctx, cfg.Centroids.Path, cfg.Centroids.URL); err != nil {
		logger.Warn("centroid artifact unavailable", "error", err)
	} else if centroids, err = model.LoadCentroids(cfg.Centroids.Path, meta.Classes); err != nil {
		logger.Warn("failed to load centroids", "path", cfg.Centroids.Path, "error", err)
		centroids = nil
	} else {
		logger.Info("centroids loaded", "path", cfg.Centroids.Path)
	}

	// The nil concrete pointer must not leak into the interface, or
	// ModelLoaded would report true for a failed load.
	var c model.Classifier
	if classifier != nil {
		c = classifier
	}
	return model.NewService(meta, c, centroids), classifier
}
