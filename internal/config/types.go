// Package config provides layered configuration management for driftcast:
// built-in defaults, overridden by an optional YAML file, overridden by
// environment variables.
package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version  string `yaml:"version,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`
	DataDir  string `yaml:"dataDir,omitempty"`

	Catalog     CatalogConfig     `yaml:"catalog"`
	API         APIConfig         `yaml:"api"`
	Registry    RegistryConfig    `yaml:"registry"`
	Crossfade   CrossfadeConfig   `yaml:"crossfade"`
	Latent      LatentConfig      `yaml:"latent"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	TLSCert string `yaml:"-"`
	TLSKey  string `yaml:"-"`
}

// CatalogConfig describes where tracks live and how they are ingested.
type CatalogConfig struct {
	Root           string   `yaml:"root"`
	Extensions     []string `yaml:"extensions,omitempty"`
	RefreshOnStart bool     `yaml:"refreshOnStart,omitempty"`
	// FeaturesPath points at a JSON sidecar mapping track id to its
	// acoustic feature vector. Feature extraction itself happens
	// out-of-process; the sidecar is the handoff point. Empty disables
	// feature loading, leaving every track's vector empty.
	FeaturesPath string `yaml:"featuresPath,omitempty"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty"`
	MaxPayloadBytes int64         `yaml:"maxPayloadBytes,omitempty"`
	RateLimitRPS    float64       `yaml:"rateLimitRps,omitempty"`
	RateLimitBurst  int           `yaml:"rateLimitBurst,omitempty"`

	// AdminToken gates the /internal/* operator endpoints. Empty disables
	// the check entirely, appropriate for local/dev use only.
	AdminToken string `yaml:"adminToken,omitempty"`

	// AutoTLS generates and reuses a self-signed certificate under
	// DataDir/certs when TLSCert/TLSKey are not explicitly configured.
	AutoTLS bool `yaml:"autoTls,omitempty"`
}

// RegistryConfig holds session registry tuning knobs.
type RegistryConfig struct {
	FingerprintTTL  time.Duration `yaml:"fingerprintTtl,omitempty"`
	IdleTimeout     time.Duration `yaml:"idleTimeout,omitempty"`
	SweepInterval   time.Duration `yaml:"sweepInterval,omitempty"`
	PrewarmPoolSize int           `yaml:"prewarmPoolSize,omitempty"`
	DurablePath     string        `yaml:"durablePath,omitempty"`

	// RedisAddr, set to a "host:port", moves the fingerprint-to-session
	// binding cache out of process memory and into Redis, so a pool of
	// daemon replicas behind a load balancer shares one dedup view
	// instead of each instance re-creating a session for the same
	// reconnecting client. Empty keeps the in-memory cache.
	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       int    `yaml:"redisDb,omitempty"`
}

// CrossfadeConfig holds mixer crossfade tuning knobs.
type CrossfadeConfig struct {
	LeadTime time.Duration `yaml:"leadTime,omitempty"`
	Curve    string        `yaml:"curve,omitempty"` // "equal-power" (only supported curve)
}

// LatentConfig describes how to reach the latent-space subprocess.
type LatentConfig struct {
	Command        string        `yaml:"command,omitempty"`
	Args           []string      `yaml:"args,omitempty"`
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
	BreakerWindow  time.Duration `yaml:"breakerWindow,omitempty"`
}

// PersistenceConfig describes the playlist/ratings/play-stats store.
type PersistenceConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// TelemetryConfig configures the OpenTelemetry trace exporter backing
// the HTTP Surface's per-request spans. Disabled by default, in which
// case spans are created against a noop provider and discarded.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	ExporterType string  `yaml:"exporterType,omitempty"` // "grpc" or "http"
	Endpoint     string  `yaml:"endpoint,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}
