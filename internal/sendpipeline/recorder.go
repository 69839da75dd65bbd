package sendpipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Recorder commits a finished send to local transaction history, the
// Go analogue of the source's ABC_TxSendComplete (spec.md §4.6 step 5).
// A Recorder failure is logged but never turns a broadcast success into a
// reported failure (spec.md §7).
type Recorder interface {
	RecordTx(ctx context.Context, walletID string, tx coretypes.UnsavedTx, details coretypes.TxDetails) error
}

// recordDoc is the on-disk shape of one recorded transaction. Outputs stays
// interleaved exactly as ABC_BridgeExtractOutputs produces it: inputs then
// outputs, each tagged isInput, not split into separate arrays (spec.md §9).
type recordDoc struct {
	TxID        string             `json:"txid"`
	MalleableID string             `json:"malleableId"`
	Outputs     []recordOutputDoc  `json:"outputs"`
	Details     recordTxDetailsDoc `json:"details"`
}

type recordOutputDoc struct {
	IsInput bool   `json:"isInput"`
	TxID    string `json:"txid"`
	Address string `json:"address"`
	Value   int64  `json:"value"`
}

type recordTxDetailsDoc struct {
	AmountSatoshi            int64  `json:"amountSatoshi"`
	AmountFeesMinersSatoshi  int64  `json:"amountFeesMinersSatoshi"`
	AmountFeesAirbitzSatoshi int64  `json:"amountFeesAirbitzSatoshi"`
	Notes                    string `json:"notes"`
	Category                 string `json:"category"`
	Payee                    string `json:"payee"`
	BizID                    int64  `json:"bizId"`
}

// FileRecorder writes one pretty-printed JSON file per transaction under
// <baseDir>/<walletID>/Tx_<txid>.json, matching the 4-space-indent,
// preserved-field-order convention spec.md §6 mandates for every JSON file
// this module writes.
type FileRecorder struct {
	baseDir string
	log     *applog.Logger
}

func NewFileRecorder(baseDir string) *FileRecorder {
	return &FileRecorder{baseDir: baseDir, log: applog.Component("TxRecorder")}
}

func (r *FileRecorder) RecordTx(ctx context.Context, walletID string, tx coretypes.UnsavedTx, details coretypes.TxDetails) error {
	doc := recordDoc{
		TxID:        tx.TxID.String(),
		MalleableID: tx.MalleableID.String(),
		Details: recordTxDetailsDoc{
			AmountSatoshi:            details.AmountSatoshi,
			AmountFeesMinersSatoshi:  details.AmountFeesMinersSatoshi,
			AmountFeesAirbitzSatoshi: details.AmountFeesAirbitzSatoshi,
			Notes:                    details.Notes,
			Category:                 details.Category,
			Payee:                    details.Payee,
			BizID:                    details.BizID,
		},
	}
	for _, o := range tx.Outputs {
		doc.Outputs = append(doc.Outputs, recordOutputDoc{
			IsInput: o.IsInput,
			TxID:    o.TxID.String(),
			Address: o.Address,
			Value:   o.Value,
		})
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return walleterr.Wrap(walleterr.KindJSON, "encode transaction record", err)
	}

	dir := filepath.Join(r.baseDir, walletID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return walleterr.Wrap(walleterr.KindIO, "create transaction record directory", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("Tx_%s.json", tx.TxID.String()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return walleterr.Wrap(walleterr.KindIO, "write transaction record", err)
	}
	return nil
}
