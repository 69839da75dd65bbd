package feeinfo

import (
	"testing"

	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

func sampleInfo() coretypes.BitcoinFeeInfo {
	return coretypes.BitcoinFeeInfo{
		ConfirmFees:                [7]int64{0, 200000, 150000, 120000, 100000, 80000, 60000},
		LowFeeBlock:                6,
		StandardFeeBlockLow:        3,
		StandardFeeBlockHigh:       2,
		HighFeeBlock:               1,
		TargetFeePercentage:        0.001,
		StandardFeeAmountThreshold: 2000000,
	}
}

func TestSelectFeeRateLowTier(t *testing.T) {
	info := sampleInfo()
	fee, err := SelectFeeRate(info, coretypes.FeeLevelLow, 100000, 250)
	if err != nil {
		t.Fatalf("SelectFeeRate: %v", err)
	}
	if fee <= 0 {
		t.Fatalf("expected positive fee, got %d", fee)
	}
}

func TestSelectFeeRateStandardPicksLowBlockBelowThreshold(t *testing.T) {
	info := sampleInfo()
	feeBelow, err := SelectFeeRate(info, coretypes.FeeLevelStandard, 1000000, 250)
	if err != nil {
		t.Fatalf("SelectFeeRate: %v", err)
	}
	feeAtOrAbove, err := SelectFeeRate(info, coretypes.FeeLevelStandard, 3000000, 250)
	if err != nil {
		t.Fatalf("SelectFeeRate: %v", err)
	}
	if feeBelow == feeAtOrAbove {
		t.Fatalf("expected different fee-per-KB selection across the standard threshold")
	}
}

func TestSelectFeeRateHighIsUncapped(t *testing.T) {
	info := sampleInfo()
	info.TargetFeePercentage = 10.0 // force the percentage path far above confirmFees[2]
	fee, err := SelectFeeRate(info, coretypes.FeeLevelHigh, 1000000, 250)
	if err != nil {
		t.Fatalf("SelectFeeRate: %v", err)
	}
	if fee < info.ConfirmFees[2] {
		t.Fatalf("expected High tier fee to be allowed above confirmFees[2], got %d", fee)
	}
}

func TestSelectFeeRateRejectsUnknownLevel(t *testing.T) {
	info := sampleInfo()
	if _, err := SelectFeeRate(info, coretypes.FeeLevel(99), 1000, 250); err == nil {
		t.Fatalf("expected error for unknown fee level")
	}
}
