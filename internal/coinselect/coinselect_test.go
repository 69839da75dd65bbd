package coinselect

import (
	"testing"

	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

func flatFeeEstimator(feePerTx int64) FeeEstimator {
	return func(numInputs, numOutputs int) (int64, error) {
		return feePerTx, nil
	}
}

func utxo(amount int64) coretypes.UTXO {
	return coretypes.UTXO{Amount: amount, Spendable: true}
}

func TestPickOptimalChoosesFewestInputs(t *testing.T) {
	utxos := []coretypes.UTXO{utxo(50000), utxo(30000), utxo(20000), utxo(10000)}
	outputs := []coretypes.TxOutput{{Address: "dest", Value: 40000}}

	sel, err := PickOptimal(utxos, outputs, flatFeeEstimator(1000))
	if err != nil {
		t.Fatalf("PickOptimal: %v", err)
	}
	if len(sel.Inputs) != 1 {
		t.Fatalf("expected a single 50000-sat input to suffice, got %d inputs", len(sel.Inputs))
	}
	if sel.Change != 50000-40000-1000 {
		t.Fatalf("unexpected change: got %d", sel.Change)
	}
}

func TestPickOptimalInsufficientFunds(t *testing.T) {
	utxos := []coretypes.UTXO{utxo(1000)}
	outputs := []coretypes.TxOutput{{Address: "dest", Value: 40000}}

	_, err := PickOptimal(utxos, outputs, flatFeeEstimator(100))
	if err == nil {
		t.Fatalf("expected InsufficientFunds error")
	}
	if walleterr.KindOf(err) != walleterr.KindInsufficientFunds {
		t.Fatalf("expected KindInsufficientFunds, got %v", walleterr.KindOf(err))
	}
}

func TestPickOptimalSkipsUnspendable(t *testing.T) {
	utxos := []coretypes.UTXO{
		{Amount: 100000, Spendable: false},
		utxo(50000),
	}
	outputs := []coretypes.TxOutput{{Address: "dest", Value: 40000}}

	sel, err := PickOptimal(utxos, outputs, flatFeeEstimator(1000))
	if err != nil {
		t.Fatalf("PickOptimal: %v", err)
	}
	if len(sel.Inputs) != 1 || sel.Inputs[0].Amount != 50000 {
		t.Fatalf("expected the unspendable UTXO to be skipped, got %+v", sel.Inputs)
	}
}

func TestPickMaximum(t *testing.T) {
	utxos := []coretypes.UTXO{utxo(100000), utxo(50000)}
	sel, ok, err := PickMaximum(utxos, 1, flatFeeEstimator(1000))
	if err != nil {
		t.Fatalf("PickMaximum: %v", err)
	}
	if !ok {
		t.Fatalf("expected a viable max-send transaction")
	}
	if sel.Change != 150000-1000 {
		t.Fatalf("unexpected spendable max: got %d", sel.Change)
	}
}

func TestPickMaximumNoViableTx(t *testing.T) {
	utxos := []coretypes.UTXO{utxo(500)}
	_, ok, err := PickMaximum(utxos, 1, flatFeeEstimator(1000))
	if err != nil {
		t.Fatalf("PickMaximum: %v", err)
	}
	if ok {
		t.Fatalf("expected no viable transaction when fee exceeds total funds")
	}
}

func TestFinalizeOutputsDropsDustChange(t *testing.T) {
	outputs := []coretypes.TxOutput{{Address: "dest", Value: 40000}}
	got := FinalizeOutputs(outputs, 100, "change-addr")
	if len(got) != 1 {
		t.Fatalf("expected dust change to be dropped, got %+v", got)
	}
}

func TestFinalizeOutputsAppendsChangeAboveDust(t *testing.T) {
	outputs := []coretypes.TxOutput{{Address: "dest", Value: 40000}}
	got := FinalizeOutputs(outputs, 10000, "change-addr")
	if len(got) != 2 {
		t.Fatalf("expected change output to be appended, got %+v", got)
	}
	if got[len(got)-1].Address != "change-addr" || got[len(got)-1].Value != 10000 {
		t.Fatalf("unexpected change output: %+v", got[len(got)-1])
	}
}
