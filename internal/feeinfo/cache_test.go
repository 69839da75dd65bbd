package feeinfo

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

func TestCacheColdFetchPopulatesSnapshot(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	fetch := func(ctx context.Context) (coretypes.FeeInfo, error) {
		atomic.AddInt32(&calls, 1)
		return coretypes.FeeInfo{Bitcoin: sampleInfo(), FetchedAt: time.Now()}, nil
	}
	c := New(filepath.Join(dir, "fee_cache.json"), 24*time.Hour, fetch)

	got := c.Get(context.Background())
	if got.Bitcoin.LowFeeBlock != sampleInfo().LowFeeBlock {
		t.Fatalf("expected fetched snapshot, got %+v", got.Bitcoin)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one fetch on cold cache, got %d", calls)
	}
}

func TestCacheFallbackOnColdFetchFailure(t *testing.T) {
	dir := t.TempDir()
	fetch := func(ctx context.Context) (coretypes.FeeInfo, error) {
		return coretypes.FeeInfo{}, context.DeadlineExceeded
	}
	c := New(filepath.Join(dir, "fee_cache.json"), 24*time.Hour, fetch)

	got := c.Get(context.Background())
	if got.Bitcoin.LowFeeBlock != fallback.LowFeeBlock {
		t.Fatalf("expected compiled-in fallback, got %+v", got.Bitcoin)
	}
}

func TestCacheServesStaleSnapshotWhileRefreshing(t *testing.T) {
	dir := t.TempDir()
	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (coretypes.FeeInfo, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return coretypes.FeeInfo{Bitcoin: sampleInfo(), FetchedAt: time.Now()}, nil
	}
	c := New(filepath.Join(dir, "fee_cache.json"), -1*time.Second, fetch)
	c.snapshot = coretypes.FeeInfo{Bitcoin: sampleInfo(), FetchedAt: time.Now().Add(-48 * time.Hour)}
	c.haveCached = true

	got := c.Get(context.Background())
	if got.Bitcoin.LowFeeBlock != sampleInfo().LowFeeBlock {
		t.Fatalf("expected stale snapshot served immediately, got %+v", got.Bitcoin)
	}
	close(release)
	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one background refresh, got %d", calls)
	}
}
