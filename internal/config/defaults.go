package config

import "time"

// Defaults returns the built-in baseline configuration. File and
// environment layers are merged on top of this in Load.
func Defaults() AppConfig {
	return AppConfig{
		Version:  "dev",
		LogLevel: "info",
		DataDir:  "./data",
		Catalog: CatalogConfig{
			Root:           "./library",
			Extensions:     []string{".flac", ".mp3", ".ogg", ".m4a"},
			RefreshOnStart: true,
		},
		API: APIConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // streaming responses must not be capped
			MaxPayloadBytes: 1 << 20,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Registry: RegistryConfig{
			FingerprintTTL:  30 * 24 * time.Hour,
			IdleTimeout:     30 * time.Minute,
			SweepInterval:   time.Minute,
			PrewarmPoolSize: 0,
		},
		Crossfade: CrossfadeConfig{
			LeadTime: 6 * time.Second,
			Curve:    "equal-power",
		},
		Latent: LatentConfig{
			RequestTimeout: 2 * time.Second,
			BreakerWindow:  30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ExporterType: "grpc",
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}
