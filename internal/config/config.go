// Package config loads process configuration from the environment,
// generalizing cmd/engine/main.go's requireEnv/getEnvOrDefault pair into a
// single struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Config holds everything the wallet core needs to start.
type Config struct {
	// DataDir is the root directory under which the Accounts/ tree lives.
	DataDir string
	// AccountServerURL is the credential server base URL (§6).
	AccountServerURL string
	// GeneralInfoURL is the general-info server base URL (§6).
	GeneralInfoURL string
	// BroadcastEndpoints are raw-tx submission URLs, all submitted to
	// concurrently, first success wins (spec.md §4.6 step 3).
	BroadcastEndpoints []string
	// FeeCacheRefreshInterval is how often the feeestimator's background
	// loop checks for staleness.
	FeeCacheRefreshInterval time.Duration
	// FeeCacheStaleAfter is the age at which a cached fee document is
	// considered stale and eligible for refresh (default 24h, spec.md §4.4).
	FeeCacheStaleAfter time.Duration
	// Net selects which chaincfg.Params addresses/scripts are built against.
	Net *chaincfg.Params
	// DebugListenAddr, if non-empty, serves the optional gin debug surface.
	DebugListenAddr string
	// FeeSampleDSN is the Postgres connection string for feeestimator.
	FeeSampleDSN string
}

// Load reads configuration from the environment. Required variables cause a
// hard failure; optional ones fall back to sane defaults, mirroring the
// teacher's requireEnv/getEnvOrDefault split.
func Load() (Config, error) {
	dataDir, err := requireEnv("WALLETCORE_DATA_DIR")
	if err != nil {
		return Config{}, err
	}
	acctURL, err := requireEnv("WALLETCORE_ACCOUNT_SERVER_URL")
	if err != nil {
		return Config{}, err
	}
	infoURL, err := requireEnv("WALLETCORE_GENERAL_INFO_URL")
	if err != nil {
		return Config{}, err
	}

	net := chaincfg.MainNetParams
	if getEnvOrDefault("WALLETCORE_NETWORK", "mainnet") == "testnet" {
		net = chaincfg.TestNet3Params
	}

	refresh, err := durationOrDefault("WALLETCORE_FEE_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	stale, err := durationOrDefault("WALLETCORE_FEE_STALE_AFTER", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}

	return Config{
		DataDir:                 dataDir,
		AccountServerURL:        acctURL,
		GeneralInfoURL:          infoURL,
		BroadcastEndpoints:      splitNonEmpty(getEnvOrDefault("WALLETCORE_BROADCAST_ENDPOINTS", "")),
		FeeCacheRefreshInterval: refresh,
		FeeCacheStaleAfter:      stale,
		Net:                     &net,
		DebugListenAddr:         getEnvOrDefault("WALLETCORE_DEBUG_ADDR", ""),
		FeeSampleDSN:            getEnvOrDefault("WALLETCORE_FEE_SAMPLE_DSN", ""),
	}, nil
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return val, nil
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration (seconds) for %s: %w", key, err)
	}
	return time.Duration(secs) * time.Second, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
