package feeinfo

import (
	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// SelectFeeRate implements spec.md §4.4's BitcoinFeeInfo interpretation:
// it resolves the per-KB fee rate for the chosen tier and outgoing amount,
// then scales it by the transaction's virtual size to produce the total
// fee in satoshi.
func SelectFeeRate(info coretypes.BitcoinFeeInfo, level coretypes.FeeLevel, outgoingSatoshi int64, vsizeBytes int64) (int64, error) {
	block, err := confirmBlockFor(info, level, outgoingSatoshi)
	if err != nil {
		return 0, err
	}
	if block <= 0 || block >= len(info.ConfirmFees) {
		return 0, walleterr.New(walleterr.KindInternal, "confirm block index out of range")
	}
	feePerKB := info.ConfirmFees[block]

	feePercentage := int64(info.TargetFeePercentage * float64(outgoingSatoshi))

	floor := info.ConfirmFees[3]
	if feePercentage < floor {
		feePercentage = floor
	}
	if level != coretypes.FeeLevelHigh {
		ceiling := info.ConfirmFees[2]
		if feePercentage > ceiling {
			feePercentage = ceiling
		}
	}
	if feePercentage > feePerKB {
		feePerKB = feePercentage
	}

	total := (feePerKB * vsizeBytes) / 1000
	if total < 1 {
		total = 1
	}
	return total, nil
}

// confirmBlockFor picks the ConfirmFees index for the requested tier
// (spec.md §4.4 steps 1-2). Index 0 is reserved and is never a valid
// result of this function.
func confirmBlockFor(info coretypes.BitcoinFeeInfo, level coretypes.FeeLevel, outgoingSatoshi int64) (int, error) {
	switch level {
	case coretypes.FeeLevelLow:
		return info.LowFeeBlock, nil
	case coretypes.FeeLevelHigh:
		return info.HighFeeBlock, nil
	case coretypes.FeeLevelStandard:
		if outgoingSatoshi < info.StandardFeeAmountThreshold {
			return info.StandardFeeBlockLow, nil
		}
		return info.StandardFeeBlockHigh, nil
	default:
		return 0, walleterr.New(walleterr.KindInternal, "unknown fee level")
	}
}
