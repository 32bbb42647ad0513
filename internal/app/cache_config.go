package app

import (
	"strings"

	"github.com/charlesng35/livecss/internal/cache"
	"github.com/charlesng35/livecss/internal/database"
)

// Storage backends accepted by storage.backend.
const (
	StorageDatabase = "database"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,

		KeyPrefix: strings.TrimSpace(c.Redis.KeyPrefix),
	}
}

// ConnectionConfig converts the database section into the settings database.Open expects.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{
		Driver: driver,
		Path:   c.Path,
		DSN:    strings.TrimSpace(c.DSN),
	}

	var host DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = strings.TrimSpace(host.Host)
	cfg.Port = host.Port
	cfg.Name = strings.TrimSpace(host.Database)
	cfg.User = strings.TrimSpace(host.Username)
	cfg.Password = host.Password
	return cfg
}

// NormalizedBackend reports the storage backend in lower case, defaulting to the database.
func (c StorageConfig) NormalizedBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Backend))
	if backend == "" {
		return StorageDatabase
	}
	return backend
}
