package app

import (
	"strings"

	"github.com/charlesng35/livecss/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(level string) error {
	return ConfigureLoggingFormat(level, "")
}

// ConfigureLoggingFormat initialises the global logger with an explicit encoder ("json" or "console").
func ConfigureLoggingFormat(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.InitWithOptions(logger.Options{Level: level, Format: format})
}
