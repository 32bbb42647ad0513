package database

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Defaults mirror the database.postgres and database.mysql sections of the config tree.
const (
	defaultDatabaseName = "livecss"
	defaultPostgresHost = "localhost"
	defaultPostgresPort = 5432
	defaultMySQLHost    = "127.0.0.1"
	defaultMySQLPort    = 3306
)

func buildPostgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" {
		return "", errors.New("postgres: database.postgres.username is required")
	}

	options := withDefaults(cfg.Options, map[string]string{
		"sslmode":          "disable",
		"application_name": "livecss",
	})

	params := []string{
		"host=" + orDefault(cfg.Host, defaultPostgresHost),
		fmt.Sprintf("port=%d", portOrDefault(cfg.Port, defaultPostgresPort)),
		"user=" + cfg.User,
		"dbname=" + orDefault(cfg.Name, defaultDatabaseName),
	}
	if cfg.Password != "" {
		params = append(params, "password="+cfg.Password)
	}
	for _, key := range sortedKeys(options) {
		params = append(params, key+"="+options[key])
	}
	return strings.Join(params, " "), nil
}

func buildMySQLDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}
	if cfg.User == "" {
		return "", errors.New("mysql: database.mysql.username is required")
	}

	// cache_entries timestamps are compared against the server clock in UTC.
	options := withDefaults(cfg.Options, map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "true",
		"loc":       "UTC",
	})

	user := cfg.User
	if cfg.Password != "" {
		user += ":" + cfg.Password
	}

	query := make([]string, 0, len(options))
	for _, key := range sortedKeys(options) {
		query = append(query, key+"="+url.QueryEscape(options[key]))
	}

	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
		user,
		orDefault(cfg.Host, defaultMySQLHost),
		portOrDefault(cfg.Port, defaultMySQLPort),
		orDefault(cfg.Name, defaultDatabaseName),
		strings.Join(query, "&"),
	), nil
}

func withDefaults(overrides, defaults map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func portOrDefault(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	return port
}
