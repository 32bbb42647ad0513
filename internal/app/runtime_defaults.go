package app

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultPort            = 3000
	defaultStorageKey      = "css-playground-snippets"
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 15 * time.Second
)

// ApplyRuntimeDefaults repairs settings that would leave the server unusable, such as an empty
// storage key or a non-positive body limit. It returns the keys it reset so callers can log them.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	adjusted := make(map[string]bool)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = defaultPort
		adjusted["server.port"] = true
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
		adjusted["server.shutdown_timeout"] = true
	}

	if strings.TrimSpace(cfg.Storage.Key) == "" {
		cfg.Storage.Key = defaultStorageKey
		adjusted["storage.key"] = true
	}
	switch cfg.Storage.NormalizedBackend() {
	case StorageDatabase, StorageRedis, StorageMemory:
		cfg.Storage.Backend = cfg.Storage.NormalizedBackend()
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Snippets.MaxBodyBytes <= 0 {
		cfg.Snippets.MaxBodyBytes = defaultMaxBodyBytes
		adjusted["snippets.max_body_bytes"] = true
	}

	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
		adjusted["ratelimit.window"] = true
	}

	if endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint); endpoint == "" || !strings.HasPrefix(endpoint, "/") {
		cfg.Monitoring.Prometheus.Endpoint = "/metrics"
		adjusted["monitoring.prometheus.endpoint"] = true
	}

	return adjusted, nil
}
