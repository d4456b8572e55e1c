// Package env provides utilities for working with environment variables.
package env

import (
	"fmt"
	"os"
	"strconv"
)

// Get returns the value of the environment variable or the default if not set.
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MustGet returns the value of the environment variable or an error if it
// is unset. Used for configuration that has no sensible default.
func MustGet(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// GetInt returns the integer value of the environment variable or the
// default if unset or unparsable.
func GetInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetInt64 returns the int64 value of the environment variable or the
// default if unset or unparsable.
func GetInt64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
