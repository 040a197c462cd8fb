// Package reliability holds long-running and high-contention tests, gated by
// MOCKTRACE_RELIABILITY_LEVEL so they stay out of ordinary test runs.
package reliability

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for reliability testing.
type Config struct {
	Level         string        // "basic" or "stress"
	Duration      time.Duration // Test duration for stress tests
	MaxGoroutines int           // Maximum goroutines for concurrent tests
	SpansPerTask  int           // Spans each goroutine finishes per round
}

// getConfig reads configuration from environment variables.
func getConfig() Config {
	return Config{
		Level:         getEnv("MOCKTRACE_RELIABILITY_LEVEL", ""),
		Duration:      parseDuration(getEnv("MOCKTRACE_RELIABILITY_DURATION", "5s"), 5*time.Second),
		MaxGoroutines: parseInt(getEnv("MOCKTRACE_RELIABILITY_MAX_GOROUTINES", "100"), 100),
		SpansPerTask:  parseInt(getEnv("MOCKTRACE_RELIABILITY_SPANS_PER_TASK", "100"), 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, fallback int) int {
	if value, err := strconv.Atoi(s); err == nil && value > 0 {
		return value
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}
