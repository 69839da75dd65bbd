// Package feeestimator bridges externally supplied stratum per-block fee
// samples into a persisted, queryable cache (spec.md §4.1 item 8, §6
// "Stratum servers"; original_source abcd/General.hpp's
// generalEstimateFeesUpdate/generalEstimateFeesNeedUpdate).
package feeestimator

import (
	"context"
	"time"

	"github.com/airbitz-style/walletcore/internal/applog"
)

// Sample is one stratum-supplied fee observation for a target confirmation
// depth.
type Sample struct {
	Blocks     int
	FeeBtcPerKb float64
}

// Store persists fee samples and tracks when they were last refreshed.
type Store interface {
	UpsertSamples(ctx context.Context, samples []Sample, observedAt time.Time) error
	LatestUpdate(ctx context.Context) (time.Time, bool, error)
	Samples(ctx context.Context) ([]Sample, error)
}

// Estimator is the process-facing surface: Update records a fresh batch of
// samples, NeedsUpdate reports whether the last recorded batch is older
// than refreshInterval.
type Estimator struct {
	store          Store
	refreshInterval time.Duration
	log            *applog.Logger
}

func New(store Store, refreshInterval time.Duration) *Estimator {
	return &Estimator{store: store, refreshInterval: refreshInterval, log: applog.Component("FeeEstimator")}
}

// Update persists a single stratum-supplied fee sample for a confirmation
// target (generalEstimateFeesUpdate, which is likewise called once per
// confirmation depth as the stratum bridge walks its target list).
func (e *Estimator) Update(ctx context.Context, blocks int, feeBTCPerKB float64) error {
	sample := Sample{Blocks: blocks, FeeBtcPerKb: feeBTCPerKB}
	if err := e.store.UpsertSamples(ctx, []Sample{sample}, time.Now()); err != nil {
		return err
	}
	e.log.Infof("recorded stratum fee sample: %d blocks -> %f BTC/KB", blocks, feeBTCPerKB)
	return nil
}

// NeedsUpdate reports whether the persisted samples are older than the
// configured refresh interval, or absent entirely
// (generalEstimateFeesNeedUpdate).
func (e *Estimator) NeedsUpdate(ctx context.Context) (bool, error) {
	lastUpdate, ok, err := e.store.LatestUpdate(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return time.Since(lastUpdate) > e.refreshInterval, nil
}

// RateForBlocks returns the most recently recorded fee rate (BTC/KB) for
// the sample nearest the requested confirmation depth, or ok=false when no
// samples have ever been recorded.
func (e *Estimator) RateForBlocks(ctx context.Context, blocks int) (rate float64, ok bool, err error) {
	samples, err := e.store.Samples(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(samples) == 0 {
		return 0, false, nil
	}
	best := samples[0]
	bestDist := absInt(best.Blocks - blocks)
	for _, s := range samples[1:] {
		if d := absInt(s.Blocks - blocks); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best.FeeBtcPerKb, true, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
