// Package coinselect picks which UTXOs fund a send and assembles the
// final output list (spec.md §4.5). The algorithm is a single greedy pass
// over UTXOs sorted by amount descending; the fee is re-estimated for the
// current input count at every step, so no second pass is made.
package coinselect

import (
	"sort"

	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Dust thresholds per output script class (Bitcoin Core relay policy,
// satoshi). DustThresholdGeneric is used whenever the destination script
// class is not known ahead of the final selection.
const (
	DustThresholdP2PKH   = 546
	DustThresholdP2SH    = 540
	DustThresholdP2WPKH  = 294
	DustThresholdP2WSH   = 330
	DustThresholdP2TR    = 330
	DustThresholdGeneric = 546
)

const (
	bytesPerInput       = 148
	bytesPerOutput      = 34
	bytesOverheadFixed  = 10
)

// FeeEstimator computes the total fee in satoshi for a transaction with
// the given number of inputs and outputs. Implementations typically close
// over an internal/feeinfo.Cache snapshot.
type FeeEstimator func(numInputs, numOutputs int) (int64, error)

// Selection is the result of a successful coin selection.
type Selection struct {
	Inputs []coretypes.UTXO
	Fee    int64
	Change int64
}

// PickOptimal takes spendable utxos largest first until they cover
// sum(outputs) + fee, which yields the fewest inputs (spec.md §4.5). The
// leftover change is not minimized: among selections with the same input
// count, the one made of the largest UTXOs is returned, not the one with
// the smallest change.
func PickOptimal(utxos []coretypes.UTXO, outputs []coretypes.TxOutput, estimateFee FeeEstimator) (Selection, error) {
	target := sumOutputs(outputs)
	sorted := sortedDescending(utxos)

	var running int64
	var selected []coretypes.UTXO
	numOutputs := len(outputs) + 1 // +1 for the change output, present in the common case

	for _, u := range sorted {
		if !u.Spendable {
			continue
		}
		selected = append(selected, u)
		running += u.Amount

		// estimateFee is re-evaluated against the actual selected count on
		// every iteration, so a fee-rate class boundary crossed by adding
		// this UTXO is already reflected before the sufficiency check
		// below (spec.md §4.5 step iii).
		fee, err := estimateFee(len(selected), numOutputs)
		if err != nil {
			return Selection{}, err
		}
		if running >= target+fee {
			return Selection{
				Inputs: selected,
				Fee:    fee,
				Change: running - target - fee,
			}, nil
		}
	}

	return Selection{}, walleterr.New(walleterr.KindInsufficientFunds, "no UTXO subset covers outputs plus fee")
}

// PickMaximum returns the largest sendable amount from utxos such that the
// resulting transaction still pays at least the minimum fee, leaving the
// destination amount at zero for the caller to fill in with the returned
// change value (spec.md §4.5). It reports ok=false when no transaction is
// viable at all (e.g. every UTXO's value is consumed entirely by fees).
func PickMaximum(utxos []coretypes.UTXO, numOutputsTemplate int, estimateFee FeeEstimator) (sel Selection, ok bool, err error) {
	var spendable []coretypes.UTXO
	var total int64
	for _, u := range utxos {
		if !u.Spendable {
			continue
		}
		spendable = append(spendable, u)
		total += u.Amount
	}
	if len(spendable) == 0 {
		return Selection{}, false, nil
	}

	fee, err := estimateFee(len(spendable), numOutputsTemplate)
	if err != nil {
		return Selection{}, false, err
	}
	if total <= fee {
		return Selection{}, false, nil
	}
	return Selection{Inputs: spendable, Fee: fee, Change: total - fee}, true, nil
}

// FinalizeOutputs appends a change output to changeAddress when change is
// at or above the dust threshold, otherwise folds it into the fee by simply
// dropping it (spec.md §4.5). Output ordering is preserved: destination
// outputs first, then (when present) the service-fee output already in
// outputs, then change last.
func FinalizeOutputs(outputs []coretypes.TxOutput, change int64, changeAddress string) []coretypes.TxOutput {
	if change < DustThresholdGeneric {
		return outputs
	}
	out := make([]coretypes.TxOutput, len(outputs), len(outputs)+1)
	copy(out, outputs)
	return append(out, coretypes.TxOutput{Address: changeAddress, Value: change})
}

// EstimateVirtualSize gives a rough non-segwit virtual size for numInputs
// P2PKH inputs and numOutputs P2PKH outputs, used by the default
// FeeEstimator wiring in internal/sendpipeline.
func EstimateVirtualSize(numInputs, numOutputs int) int64 {
	return int64(bytesOverheadFixed + numInputs*bytesPerInput + numOutputs*bytesPerOutput)
}

func sumOutputs(outputs []coretypes.TxOutput) int64 {
	var total int64
	for _, o := range outputs {
		total += o.Value
	}
	return total
}

func sortedDescending(utxos []coretypes.UTXO) []coretypes.UTXO {
	sorted := make([]coretypes.UTXO, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
	return sorted
}
