// Package util has the small env and id helpers used by the API binary
// and its handlers.
package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env returns the trimmed value of k, or def when unset or blank.
func Env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// MustEnv panics when k is unset. Reserved for settings the binary cannot
// run without.
func MustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}

// IntEnv parses k as an int, falling back to def on absence or bad input.
func IntEnv(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// DurationEnv parses k as a time.Duration ("30s", "2m"), falling back to
// def on absence or bad input.
func DurationEnv(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
