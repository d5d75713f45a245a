// Command daemon runs the driftcast server: it builds the Feature Index
// from a catalog root, wires the Session Registry and Latent Service
// Client, and serves the HTTP Surface until signaled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/driftcast/driftcast/internal/api"
	"github.com/driftcast/driftcast/internal/audit"
	"github.com/driftcast/driftcast/internal/bus"
	"github.com/driftcast/driftcast/internal/config"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/domain/session/registry"
	"github.com/driftcast/driftcast/internal/health"
	"github.com/driftcast/driftcast/internal/index"
	"github.com/driftcast/driftcast/internal/latent"
	"github.com/driftcast/driftcast/internal/log"
	"github.com/driftcast/driftcast/internal/mixer"
	"github.com/driftcast/driftcast/internal/persistence"
	"github.com/driftcast/driftcast/internal/persistence/sqlite"
	"github.com/driftcast/driftcast/internal/telemetry"
	drifttls "github.com/driftcast/driftcast/internal/tls"
	"github.com/driftcast/driftcast/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("driftcast %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	log.Configure(log.Config{Level: "info", Service: "driftcast", Version: version.Version})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: "driftcast", Version: cfg.Version})
	logger = log.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("startup checks failed")
	}

	telemetryProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "driftcast",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry provider")
	}

	logger.Info().
		Str("version", cfg.Version).
		Str("addr", cfg.API.ListenAddr).
		Str("catalog", cfg.Catalog.Root).
		Msg("starting driftcast")

	buildStart := time.Now()
	tracks, err := index.BuildFromCatalogRoot(logger, cfg.Catalog.Root, cfg.Catalog.Extensions)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build feature index from catalog root")
	}
	if cfg.Catalog.FeaturesPath != "" {
		if err := index.LoadFeatureSidecar(cfg.Catalog.FeaturesPath, tracks); err != nil {
			logger.Warn().Err(err).Str("path", cfg.Catalog.FeaturesPath).Msg("failed to load acoustic feature sidecar, tracks will carry empty feature vectors")
		}
	}
	idx := index.New(tracks)
	logger.Info().Int("tracks", idx.Size()).Msg("feature index built")
	audit.NewLogger().CatalogRebuild("daemon", idx.Size(), time.Since(buildStart).Milliseconds())

	latentClient, err := latent.New(logger, cfg.Latent)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start latent service client")
	}

	b := bus.New()

	var persistStore *persistence.Store
	if cfg.Persistence.DSN != "" {
		db, err := sqlite.Open(cfg.Persistence.DSN, sqlite.DefaultConfig())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open persistence database")
		}
		persistStore, err = persistence.NewStore(db, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize persistence schema")
		}
		logger.Info().Str("dsn", cfg.Persistence.DSN).Msg("playlist/ratings/play-stats store ready")
	}

	leadTime := cfg.Crossfade.LeadTime
	mixerFactory := registry.MixerFactory(func() ports.Mixer {
		return mixer.New(log.WithComponent("mixer"), leadTime)
	})

	var persistRecorder ports.PlayStatsRecorder
	if persistStore != nil {
		persistRecorder = persistStore
	}

	reg, err := registry.New(logger, cfg.Registry, idx, latentClient, b, persistRecorder, mixerFactory, leadTime)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start session registry")
	}

	healthMgr := health.NewManager(cfg.Version)
	healthMgr.RegisterChecker(health.NewIndexChecker(idx.Size))
	if persistStore != nil {
		healthMgr.RegisterChecker(health.NewPersistenceChecker(persistStore.Ping))
	}

	srv := api.NewServer(api.Deps{
		Logger:   logger,
		Config:   cfg,
		Registry: reg,
		Index:    idx,
		Health:   healthMgr,
		Persist:  persistStore,
	})

	if cfg.API.AutoTLS && cfg.TLSCert == "" && cfg.TLSKey == "" {
		certPath, keyPath, err := drifttls.EnsureCertificates(drifttls.Config{
			CertPath: filepath.Join(cfg.DataDir, "certs", "driftcast.crt"),
			KeyPath:  filepath.Join(cfg.DataDir, "certs", "driftcast.key"),
			Logger:   log.WithComponent("tls"),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to provision self-signed TLS certificate")
		}
		cfg.TLSCert, cfg.TLSKey = certPath, keyPath
	}

	httpServer := &http.Server{
		Addr:         cfg.API.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.API.ListenAddr).Msg("HTTP surface listening")
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown did not complete cleanly")
	}
	if err := reg.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("registry shutdown did not complete cleanly")
	}
	if persistStore != nil {
		if err := persistStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("persistence store close did not complete cleanly")
		}
	}
	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("telemetry provider shutdown did not complete cleanly")
	}

	logger.Info().Msg("driftcast exiting")
}
