package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func (c *Config) getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Helper to get float64 env with default
func (c *Config) getEnvAsFloat64(key string, fallback float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		c.warnf("invalid float64 %q for %s, using default %g", valueStr, key, fallback)
		return fallback
	}
	return val
}

func (c *Config) getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valueStr)
	if err != nil {
		c.warnf("invalid int %q for %s, using default %d", valueStr, key, fallback)
		return fallback
	}
	return val
}

func (c *Config) getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := time.ParseDuration(valueStr)
	if err != nil {
		c.warnf("invalid duration %q for %s, using default %s", valueStr, key, fallback)
		return fallback
	}
	return val
}

func (c *Config) getEnvAsBool(key string, fallback bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valueStr)
	if err != nil {
		c.warnf("invalid bool %q for %s, using default %t", valueStr, key, fallback)
		return fallback
	}
	return val
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
