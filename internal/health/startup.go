// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/driftcast/driftcast/internal/config"
	"github.com/driftcast/driftcast/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkCatalogRoot(logger, cfg.Catalog.Root); err != nil {
		return fmt.Errorf("catalog root check failed: %w", err)
	}
	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkCatalogRoot(logger zerolog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("catalog root is not configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("catalog root %q: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalog root %q is not a directory", path)
	}
	logger.Info().Str("path", path).Msg("catalog root is reachable")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

// checkTargetedValidations performs runtime-critical validations that are cheap
// enough to run on every boot but expensive enough to be worth catching early.
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.API.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.API.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid API listen address %q: %w", cfg.API.ListenAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid API listen port %q in %q", port, cfg.API.ListenAddr)
		}
		logger.Info().Str("addr", cfg.API.ListenAddr).Msg("API listen address is valid")
	}

	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		if cfg.TLSCert == "" || cfg.TLSKey == "" {
			return fmt.Errorf("TLS configuration requires both cert and key to be set")
		}
		if err := checkFileReadable(cfg.TLSCert); err != nil {
			return fmt.Errorf("TLS cert error: %w", err)
		}
		if err := checkFileReadable(cfg.TLSKey); err != nil {
			return fmt.Errorf("TLS key error: %w", err)
		}
		logger.Info().Msg("TLS configuration is valid")
	}

	if cfg.Latent.Command == "" {
		logger.Warn().Msg("no latent service command configured; latent-dependent features fall back to direct index search")
	}

	if cfg.Persistence.DSN == "" {
		logger.Warn().Msg("no persistence DSN configured; playlists and ratings will not survive restarts")
	}

	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
