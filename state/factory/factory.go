// Package factory selects a state backend from the environment.
package factory

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oneagenthq/oneagent/state"
)

// Environment keys consulted by FromEnv.
const (
	EnvBackend    = "ONEAGENT_STATE_BACKEND" // memory | sqlite | redis
	EnvSQLitePath = "ONEAGENT_STATE_SQLITE_PATH"
	EnvRedisAddr  = "ONEAGENT_REDIS_ADDR"
	EnvRedisPass  = "ONEAGENT_REDIS_PASSWORD"
	EnvRedisDB    = "ONEAGENT_REDIS_DB"
	EnvSessionTTL = "ONEAGENT_SESSION_TTL"
)

const defaultSQLitePath = "./.oneagent/sessions.db"

// FromEnv builds the session store selected by ONEAGENT_STATE_BACKEND.
// Unset or "memory" yields the in-process store.
func FromEnv() (state.Store, error) {
	backend := strings.ToLower(getenv(EnvBackend, "memory"))
	switch backend {
	case "memory":
		return state.NewMemoryStore(getenvDuration(EnvSessionTTL, 0)), nil
	case "sqlite":
		return state.NewSQLiteStore(getenv(EnvSQLitePath, defaultSQLitePath))
	case "redis":
		addr := getenv(EnvRedisAddr, "127.0.0.1:6379")
		var opts []state.RedisOption
		if ttl := getenvDuration(EnvSessionTTL, 0); ttl > 0 {
			opts = append(opts, state.WithRedisTTL(ttl))
		}
		return state.NewRedisStore(
			addr,
			strings.TrimSpace(os.Getenv(EnvRedisPass)),
			getenvInt(EnvRedisDB, 0),
			opts...,
		)
	default:
		return nil, fmt.Errorf("unknown state backend %q, use: memory, sqlite, redis", backend)
	}
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
