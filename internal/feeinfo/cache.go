// Package feeinfo maintains the two general-info fee snapshots
// (BitcoinFeeInfo, AirbitzFeeInfo) as a single stale-refreshed JSON cache,
// and implements the fee-rate selection rule used when building a send
// (spec.md §4.4).
package feeinfo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Fetcher retrieves a fresh FeeInfo snapshot from the general-info server.
type Fetcher func(ctx context.Context) (coretypes.FeeInfo, error)

// fallback is the compiled-in snapshot served when there is no cache file
// on disk and the network fetch fails (spec.md §4.4).
var fallback = coretypes.BitcoinFeeInfo{
	ConfirmFees:                [7]int64{0, 200000, 150000, 120000, 100000, 80000, 60000},
	LowFeeBlock:                6,
	StandardFeeBlockLow:        3,
	StandardFeeBlockHigh:       2,
	HighFeeBlock:               1,
	TargetFeePercentage:        1.0,
	StandardFeeAmountThreshold: 2000000,
}

var fallbackAirbitz = coretypes.AirbitzFeeInfo{}

// Cache holds the last successfully fetched FeeInfo snapshot plus the
// machinery to refresh it: a single in-flight refresh is shared by every
// caller that observes a stale cache at the same time (spec.md §4.4:
// "concurrent refreshes ... must coalesce to one HTTP request").
type Cache struct {
	mu         sync.RWMutex
	snapshot   coretypes.FeeInfo
	haveCached bool

	path       string
	staleAfter time.Duration
	fetch      Fetcher
	log        *applog.Logger

	refreshMu   sync.Mutex
	refreshing  bool
	refreshDone chan struct{}
}

// New constructs a Cache backed by a JSON file at path, refreshed via
// fetch whenever the snapshot is older than staleAfter.
func New(path string, staleAfter time.Duration, fetch Fetcher) *Cache {
	c := &Cache{
		path:       path,
		staleAfter: staleAfter,
		fetch:      fetch,
		log:        applog.Component("FeeCache"),
	}
	if snap, err := loadFromDisk(path); err == nil {
		c.snapshot = snap
		c.haveCached = true
	}
	return c
}

// Get returns the current snapshot. When no snapshot is cached yet it
// refreshes synchronously, blocking until the fetch finishes; when the
// snapshot is stale it triggers a best-effort background refresh and
// returns the stale snapshot at once. The caller always gets an answer:
// the cached snapshot, or the compiled-in fallback on a cold cache whose
// fetch failed.
func (c *Cache) Get(ctx context.Context) coretypes.FeeInfo {
	c.mu.RLock()
	snap := c.snapshot
	cached := c.haveCached
	c.mu.RUnlock()

	if !cached {
		c.refreshSync(ctx)
		c.mu.RLock()
		snap = c.snapshot
		cached = c.haveCached
		c.mu.RUnlock()
		if !cached {
			return coretypes.FeeInfo{Bitcoin: fallback, Airbitz: fallbackAirbitz}
		}
		return snap
	}

	if time.Since(snap.FetchedAt) > c.staleAfter {
		c.refreshAsync(ctx)
	}
	return snap
}

// LastRefreshed reports when the current snapshot was fetched, the zero
// Time if nothing has ever been fetched (original_source abcd/General.hpp's
// staleness timestamp field, not named explicitly in spec.md §4.4).
func (c *Cache) LastRefreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.haveCached {
		return time.Time{}
	}
	return c.snapshot.FetchedAt
}

// ForceRefresh runs a synchronous refresh regardless of staleness, the
// manual entry point abcd/General.hpp exposes alongside its periodic
// refresh (supplemented beyond spec.md §4.4, which only describes the
// stale-triggered path).
func (c *Cache) ForceRefresh(ctx context.Context) error {
	c.refreshSync(ctx)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.haveCached {
		return walleterr.New(walleterr.KindNetwork, "fee info refresh failed and no cached snapshot exists")
	}
	return nil
}

// refreshAsync starts a refresh if none is already in flight; it never
// blocks the caller.
func (c *Cache) refreshAsync(ctx context.Context) {
	c.refreshMu.Lock()
	if c.refreshing {
		c.refreshMu.Unlock()
		return
	}
	c.refreshing = true
	done := make(chan struct{})
	c.refreshDone = done
	c.refreshMu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			c.refreshMu.Lock()
			c.refreshing = false
			c.refreshMu.Unlock()
		}()
		c.doRefresh(ctx)
	}()
}

// refreshSync waits for an in-flight refresh to finish, or starts one and
// waits for it, used on a cold cache where the caller has nothing to fall
// back on but the compiled-in default.
func (c *Cache) refreshSync(ctx context.Context) {
	c.refreshMu.Lock()
	if c.refreshing {
		done := c.refreshDone
		c.refreshMu.Unlock()
		<-done
		return
	}
	c.refreshing = true
	done := make(chan struct{})
	c.refreshDone = done
	c.refreshMu.Unlock()

	defer close(done)
	defer func() {
		c.refreshMu.Lock()
		c.refreshing = false
		c.refreshMu.Unlock()
	}()
	c.doRefresh(ctx)
}

func (c *Cache) doRefresh(ctx context.Context) {
	snap, err := c.fetch(ctx)
	if err != nil {
		c.log.Warnf("refresh failed, serving stale/fallback snapshot: %v", err)
		return
	}
	c.mu.Lock()
	c.snapshot = snap
	c.haveCached = true
	c.mu.Unlock()
	if err := saveToDisk(c.path, snap); err != nil {
		c.log.Warnf("persist snapshot failed: %v", err)
	}
}

func loadFromDisk(path string) (coretypes.FeeInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return coretypes.FeeInfo{}, err
	}
	var snap coretypes.FeeInfo
	if err := json.Unmarshal(data, &snap); err != nil {
		return coretypes.FeeInfo{}, walleterr.Wrap(walleterr.KindJSON, "parse fee cache", err)
	}
	return snap, nil
}

func saveToDisk(path string, snap coretypes.FeeInfo) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return walleterr.Wrap(walleterr.KindJSON, "encode fee cache", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return walleterr.Wrap(walleterr.KindIO, "create fee cache dir", err)
	}
	return os.WriteFile(path, data, 0o600)
}
