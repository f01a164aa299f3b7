package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// envSeconds reads a positive whole number of seconds, falling back to def
// with a warning on bad input.
func envSeconds(logger *slog.Logger, name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def.Seconds())
		return def
	}
	return time.Duration(n) * time.Second
}

// envInt reads an integer no smaller than floor.
func envInt(logger *slog.Logger, name string, def, floor int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func envFloat(logger *slog.Logger, name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return f
}
