package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/driftcast/driftcast/internal/log"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type envLookupFunc func(key string) (string, bool)

// Loader resolves configuration with precedence: defaults < YAML file < env.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
	lookupEnvFn     envLookupFunc
}

// NewLoader creates a loader reading the OS environment.
func NewLoader(configPath, version string) *Loader {
	return NewLoaderWithEnv(configPath, version, os.LookupEnv)
}

// NewLoaderWithEnv creates a loader with an injected environment source, for tests.
func NewLoaderWithEnv(configPath, version string, lookup envLookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
		lookupEnvFn:     lookup,
	}
}

// Load merges defaults, an optional YAML file, then environment overrides.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		raw, err := os.ReadFile(l.configPath) // #nosec G304 -- operator-supplied config path
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file %q: %w", l.configPath, err)
			}
		} else {
			var file AppConfig
			if err := yaml.Unmarshal(raw, &file); err != nil {
				return cfg, fmt.Errorf("parsing config file %q: %w", l.configPath, err)
			}
			mergeFile(&cfg, &file)
		}
	}

	l.applyEnv(&cfg)
	return cfg, nil
}

func mergeFile(dst, src *AppConfig) {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.Catalog.Root != "" {
		dst.Catalog.Root = src.Catalog.Root
	}
	if len(src.Catalog.Extensions) > 0 {
		dst.Catalog.Extensions = src.Catalog.Extensions
	}
	if src.Catalog.FeaturesPath != "" {
		dst.Catalog.FeaturesPath = src.Catalog.FeaturesPath
	}
	if src.API.ListenAddr != "" {
		dst.API.ListenAddr = src.API.ListenAddr
	}
	if src.API.ReadTimeout > 0 {
		dst.API.ReadTimeout = src.API.ReadTimeout
	}
	if src.API.MaxPayloadBytes > 0 {
		dst.API.MaxPayloadBytes = src.API.MaxPayloadBytes
	}
	if src.API.RateLimitRPS > 0 {
		dst.API.RateLimitRPS = src.API.RateLimitRPS
	}
	if src.API.RateLimitBurst > 0 {
		dst.API.RateLimitBurst = src.API.RateLimitBurst
	}
	if src.API.AdminToken != "" {
		dst.API.AdminToken = src.API.AdminToken
	}
	if src.API.AutoTLS {
		dst.API.AutoTLS = src.API.AutoTLS
	}
	if src.Registry.FingerprintTTL > 0 {
		dst.Registry.FingerprintTTL = src.Registry.FingerprintTTL
	}
	if src.Registry.IdleTimeout > 0 {
		dst.Registry.IdleTimeout = src.Registry.IdleTimeout
	}
	if src.Registry.SweepInterval > 0 {
		dst.Registry.SweepInterval = src.Registry.SweepInterval
	}
	if src.Registry.PrewarmPoolSize > 0 {
		dst.Registry.PrewarmPoolSize = src.Registry.PrewarmPoolSize
	}
	if src.Registry.DurablePath != "" {
		dst.Registry.DurablePath = src.Registry.DurablePath
	}
	if src.Registry.RedisAddr != "" {
		dst.Registry.RedisAddr = src.Registry.RedisAddr
	}
	if src.Registry.RedisPassword != "" {
		dst.Registry.RedisPassword = src.Registry.RedisPassword
	}
	if src.Registry.RedisDB > 0 {
		dst.Registry.RedisDB = src.Registry.RedisDB
	}
	if src.Crossfade.LeadTime > 0 {
		dst.Crossfade.LeadTime = src.Crossfade.LeadTime
	}
	if src.Crossfade.Curve != "" {
		dst.Crossfade.Curve = src.Crossfade.Curve
	}
	if src.Latent.Command != "" {
		dst.Latent.Command = src.Latent.Command
	}
	if len(src.Latent.Args) > 0 {
		dst.Latent.Args = src.Latent.Args
	}
	if src.Latent.RequestTimeout > 0 {
		dst.Latent.RequestTimeout = src.Latent.RequestTimeout
	}
	if src.Latent.BreakerWindow > 0 {
		dst.Latent.BreakerWindow = src.Latent.BreakerWindow
	}
	if src.Persistence.DSN != "" {
		dst.Persistence.DSN = src.Persistence.DSN
	}
	if src.Telemetry.Enabled {
		dst.Telemetry.Enabled = src.Telemetry.Enabled
	}
	if src.Telemetry.ExporterType != "" {
		dst.Telemetry.ExporterType = src.Telemetry.ExporterType
	}
	if src.Telemetry.Endpoint != "" {
		dst.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

func (l *Loader) applyEnv(cfg *AppConfig) {
	logger := log.WithComponent("config")

	cfg.LogLevel = l.envString("DRIFTCAST_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = l.envString("DRIFTCAST_DATA_DIR", cfg.DataDir)
	cfg.Catalog.Root = l.envString("DRIFTCAST_CATALOG_ROOT", cfg.Catalog.Root)
	cfg.Catalog.FeaturesPath = l.envString("DRIFTCAST_FEATURES_PATH", cfg.Catalog.FeaturesPath)
	cfg.API.ListenAddr = l.envString("DRIFTCAST_LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.ReadTimeout = l.envDuration(logger, "DRIFTCAST_READ_TIMEOUT", cfg.API.ReadTimeout)
	cfg.API.RateLimitRPS = l.envFloat(logger, "DRIFTCAST_RATE_LIMIT_RPS", cfg.API.RateLimitRPS)
	cfg.API.RateLimitBurst = l.envInt(logger, "DRIFTCAST_RATE_LIMIT_BURST", cfg.API.RateLimitBurst)
	cfg.API.AdminToken = l.envString("DRIFTCAST_ADMIN_TOKEN", cfg.API.AdminToken)
	cfg.API.AutoTLS = l.envBool(logger, "DRIFTCAST_AUTO_TLS", cfg.API.AutoTLS)
	cfg.Registry.FingerprintTTL = l.envDuration(logger, "DRIFTCAST_FINGERPRINT_TTL", cfg.Registry.FingerprintTTL)
	cfg.Registry.IdleTimeout = l.envDuration(logger, "DRIFTCAST_IDLE_TIMEOUT", cfg.Registry.IdleTimeout)
	cfg.Registry.PrewarmPoolSize = l.envInt(logger, "DRIFTCAST_PREWARM_POOL_SIZE", cfg.Registry.PrewarmPoolSize)
	cfg.Registry.DurablePath = l.envString("DRIFTCAST_REGISTRY_DURABLE_PATH", cfg.Registry.DurablePath)
	cfg.Registry.RedisAddr = l.envString("DRIFTCAST_REGISTRY_REDIS_ADDR", cfg.Registry.RedisAddr)
	cfg.Registry.RedisPassword = l.envString("DRIFTCAST_REGISTRY_REDIS_PASSWORD", cfg.Registry.RedisPassword)
	cfg.Registry.RedisDB = l.envInt(logger, "DRIFTCAST_REGISTRY_REDIS_DB", cfg.Registry.RedisDB)
	cfg.Crossfade.LeadTime = l.envDuration(logger, "DRIFTCAST_CROSSFADE_LEAD", cfg.Crossfade.LeadTime)
	cfg.Latent.Command = l.envString("DRIFTCAST_LATENT_COMMAND", cfg.Latent.Command)
	cfg.Latent.RequestTimeout = l.envDuration(logger, "DRIFTCAST_LATENT_TIMEOUT", cfg.Latent.RequestTimeout)
	cfg.Persistence.DSN = l.envString("DRIFTCAST_PERSISTENCE_DSN", cfg.Persistence.DSN)
	cfg.TLSCert = l.envString("DRIFTCAST_TLS_CERT", cfg.TLSCert)
	cfg.TLSKey = l.envString("DRIFTCAST_TLS_KEY", cfg.TLSKey)
	cfg.Telemetry.Enabled = l.envBool(logger, "DRIFTCAST_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = l.envString("DRIFTCAST_TELEMETRY_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("DRIFTCAST_TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(logger, "DRIFTCAST_TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return l.lookupEnvFn(key)
}

func (l *Loader) envString(key, defaultVal string) string {
	if v, ok := l.envLookup(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return defaultVal
}

func (l *Loader) envInt(logger zerolog.Logger, key string, defaultVal int) int {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable integer env override")
		return defaultVal
	}
	return n
}

func (l *Loader) envFloat(logger zerolog.Logger, key string, defaultVal float64) float64 {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable float env override")
		return defaultVal
	}
	return f
}

func (l *Loader) envBool(logger zerolog.Logger, key string, defaultVal bool) bool {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable boolean env override")
		return defaultVal
	}
	return b
}

func (l *Loader) envDuration(logger zerolog.Logger, key string, defaultVal time.Duration) time.Duration {
	v, ok := l.envLookup(key)
	if !ok || v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("ignoring unparseable duration env override")
		return defaultVal
	}
	return d
}
