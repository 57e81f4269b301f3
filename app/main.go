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

	"github.com/patgeo/geoharvest/app/api"
	"github.com/patgeo/geoharvest/app/cfg"
	"github.com/patgeo/geoharvest/app/ckan"
	"github.com/patgeo/geoharvest/app/config"
	"github.com/patgeo/geoharvest/app/convert"
	"github.com/patgeo/geoharvest/app/database"
	"github.com/patgeo/geoharvest/app/harvester"
	"github.com/patgeo/geoharvest/app/metrics"
	"github.com/patgeo/geoharvest/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// help was requested
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting GeoHarvest server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	unitRepo := database.NewUnitRepository(db)

	loader := config.NewLoader(appCfg.SourcesDir)
	sourceConfigs, err := loader.LoadAll()
	if err != nil {
		slog.Error("Failed to load source configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded source configurations", "count", len(sourceConfigs), "dir", appCfg.SourcesDir)

	httpClient := &http.Client{Timeout: 5 * time.Minute}
	catalogClient := ckan.NewClient(appCfg.CatalogURL, appCfg.CatalogAPIKey, httpClient)
	m := metrics.NewMetrics()

	harvesters := make(map[string]*harvester.Harvester, len(sourceConfigs))
	for name, sourceConfig := range sourceConfigs {
		converter := convert.NewShapefileConverter(sourceConfig.Extraction.Charset)
		harvesters[name] = harvester.NewHarvester(sourceConfig, unitRepo, catalogClient,
			httpClient, converter, m, appCfg.UserAgent)
		slog.Info("Registered harvest source", "source", name, "index_url", sourceConfig.Source.IndexURL,
			"enabled", sourceConfig.Settings.Enabled)
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(sourceConfigs, harvesters, unitRepo, httpClient)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(unitRepo, sourceConfigs, harvesters, scheduler, httpClient, m, appCfg.UserAgent)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// scheduler stops via defer
	slog.Info("Shutdown complete")
}
