// Package util provides small environment variable helpers shared across components.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// GetenvDefault returns the value of the environment variable, or fallback
// when it is unset or empty.
func GetenvDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// ParseBoolEnv parses a boolean environment variable. Accepted values are
// true/1/yes/on and false/0/no/off, case-insensitive. Unset or unrecognized
// values return defaultValue.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: unrecognized boolean value, using default", "key", key, "value", val, "default", defaultValue)
	return defaultValue
}
