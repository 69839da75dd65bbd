// Package sendpipeline orchestrates a single send end to end: coin
// selection, signing, broadcast, optional BIP-70 merchant acknowledgement,
// and local transaction recording (spec.md §4.6). The state machine is
// BUILDING -> SIGNING -> BROADCASTING -> MERCHANT_ACK? -> RECORDING -> DONE,
// with any step before BROADCASTING able to fail into FAILED with no
// side effects.
package sendpipeline

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/broadcast"
	"github.com/airbitz-style/walletcore/internal/coinselect"
	"github.com/airbitz-style/walletcore/internal/feeinfo"
	"github.com/airbitz-style/walletcore/internal/paymentproto"
	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/internal/watcher"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Stage names one state of the send state machine (spec.md §4.6).
type Stage int

const (
	StageIdle Stage = iota
	StageBuilding
	StageSigning
	StageBroadcasting
	StageMerchantACK
	StageRecording
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageBuilding:
		return "building"
	case StageSigning:
		return "signing"
	case StageBroadcasting:
		return "broadcasting"
	case StageMerchantACK:
		return "merchant_ack"
	case StageRecording:
		return "recording"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageObserver, when set on a Pipeline, is notified on every transition.
// Grounded on the teacher's websocket Hub broadcaster (internal/api's
// Hub.Broadcast), generalized from coinjoin round events to send-pipeline
// stage events.
type StageObserver interface {
	OnStage(walletID string, stage Stage)
}

// Pipeline runs sends for any number of wallets, serializing the steps
// that touch a given wallet's watcher state with a per-wallet lock instead
// of the source's single gCoreMutex (spec.md §9).
type Pipeline struct {
	locks    *walletLocks
	fees     *feeinfo.Cache
	dispatch *broadcast.Dispatcher
	merchant *merchantClient
	recorder Recorder
	params   *chaincfg.Params
	observer StageObserver
	log      *applog.Logger
}

// New builds a Pipeline. params selects the network whose address
// encoding to use when building output scripts (mainnet in production).
func New(fees *feeinfo.Cache, dispatch *broadcast.Dispatcher, recorder Recorder, params *chaincfg.Params) *Pipeline {
	return &Pipeline{
		locks:    newWalletLocks(),
		fees:     fees,
		dispatch: dispatch,
		merchant: newMerchantClient(),
		recorder: recorder,
		params:   params,
		log:      applog.Component("SendPipeline"),
	}
}

// SetObserver wires a StageObserver that receives every stage transition.
func (p *Pipeline) SetObserver(o StageObserver) { p.observer = o }

func (p *Pipeline) emit(walletID string, stage Stage) {
	p.log.Infof("wallet=%s stage=%s", walletID, stage)
	if p.observer != nil {
		p.observer.OnStage(walletID, stage)
	}
}

// Result is what a completed send produces: the signed transaction, the
// interleaved input/output record, and the final details (amendable by a
// BIP-70 merchant memo, spec.md §4.6 step 4).
type Result struct {
	Signed  coretypes.SignedTx
	Tx      coretypes.UnsavedTx
	Details coretypes.TxDetails
}

// Send runs one send to completion. w is the watcher for info.WalletID;
// cancel, if non-nil, is checked between every step before broadcast.
func (p *Pipeline) Send(ctx context.Context, w watcher.Watcher, info coretypes.SendInfo, cancel *CancelToken) (Result, error) {
	walletID := info.WalletID
	lock := p.locks.forWallet(walletID)

	// BUILDING: acquire the wallet lock, resolve the watcher, pick inputs.
	lock.Lock()
	p.emit(walletID, StageBuilding)
	if cancelled(cancel) {
		lock.Unlock()
		p.emit(walletID, StageFailed)
		return Result{}, errCancelled()
	}

	utxos, err := w.UTXOs(ctx)
	if err != nil {
		lock.Unlock()
		p.emit(walletID, StageFailed)
		return Result{}, walleterr.Wrap(walleterr.KindIO, "load wallet utxos", err)
	}
	changeAddr, err := w.NewChangeAddress(ctx)
	if err != nil {
		lock.Unlock()
		p.emit(walletID, StageFailed)
		return Result{}, walleterr.Wrap(walleterr.KindIO, "issue change address", err)
	}

	destOutputs := []coretypes.TxOutput{{Address: info.Destination, Value: info.Amount}}
	feeSnapshot := p.fees.Get(ctx).Bitcoin
	estimateFee := func(numInputs, numOutputs int) (int64, error) {
		vsize := coinselect.EstimateVirtualSize(numInputs, numOutputs)
		return feeinfo.SelectFeeRate(feeSnapshot, info.FeeLevel, info.Amount, vsize)
	}

	sel, err := coinselect.PickOptimal(utxos, destOutputs, estimateFee)
	if err != nil {
		lock.Unlock()
		p.emit(walletID, StageFailed)
		return Result{}, err
	}
	outputs := coinselect.FinalizeOutputs(destOutputs, sel.Change, changeAddr)

	details := info.Details
	details.AmountFeesMinersSatoshi = sel.Fee

	tx, err := buildUnsignedTx(sel.Inputs, outputs, p.params)
	if err != nil {
		lock.Unlock()
		p.emit(walletID, StageFailed)
		return Result{}, err
	}

	// SIGNING: still under the wallet lock — private key lookup and
	// signing touch this wallet's key material, never another's.
	p.emit(walletID, StageSigning)
	if cancelled(cancel) {
		lock.Unlock()
		p.emit(walletID, StageFailed)
		return Result{}, errCancelled()
	}
	err = signInputs(tx, sel.Inputs, func(addressKey string) ([]byte, error) {
		return w.PrivateKeyFor(ctx, addressKey)
	})
	lock.Unlock()
	if err != nil {
		p.emit(walletID, StageFailed)
		return Result{}, err
	}

	rawTx, err := serializeTx(tx)
	if err != nil {
		p.emit(walletID, StageFailed)
		return Result{}, err
	}
	nonMalleableID, malleableID := nonMalleableTxID(tx)

	// BROADCASTING: released the wallet lock above so this blocking
	// network call cannot stall other wallets' sends (spec.md §4.6 "Lock
	// discipline"). This is the last point cancellation has any effect.
	p.emit(walletID, StageBroadcasting)
	if cancelled(cancel) {
		p.emit(walletID, StageFailed)
		return Result{}, errCancelled()
	}
	if err := p.dispatch.Submit(ctx, rawTx); err != nil {
		p.emit(walletID, StageFailed)
		return Result{}, err
	}

	// From here the transaction is public: every remaining failure is
	// logged, never reported to the caller as a failed send (spec.md §7).
	if len(info.PaymentRequest) > 0 {
		p.runMerchantACK(ctx, walletID, w, lock, info, rawTx, &details)
	}

	p.runRecording(ctx, walletID, w, lock, sel.Inputs, outputs, nonMalleableID, malleableID, details)

	p.emit(walletID, StageDone)
	return Result{
		Signed: coretypes.SignedTx{
			TxID:   nonMalleableID,
			Signed: rawTx,
			Inputs: sel.Inputs,
			Fee:    sel.Fee,
		},
		Tx: coretypes.UnsavedTx{
			TxID:        nonMalleableID,
			MalleableID: malleableID,
			Outputs:     recordingOutputs(sel.Inputs, outputs),
		},
		Details: details,
	}, nil
}

func cancelled(t *CancelToken) bool {
	return t != nil && t.Cancelled()
}

func errCancelled() error {
	return walleterr.New(walleterr.KindInternal, "send cancelled before broadcast")
}

// runMerchantACK issues a refund address, submits the BIP-70 Payment, and
// folds any ack memo into details.Notes (spec.md §4.6 step 4). It never
// returns an error: failures are logged and the pipeline proceeds.
func (p *Pipeline) runMerchantACK(ctx context.Context, walletID string, w watcher.Watcher, lock lockUnlocker, info coretypes.SendInfo, rawTx []byte, details *coretypes.TxDetails) {
	p.emit(walletID, StageMerchantACK)

	req, err := paymentproto.UnmarshalPaymentRequest(info.PaymentRequest)
	if err != nil {
		p.log.Warnf("wallet=%s merchant ack skipped: malformed payment request: %v", walletID, err)
		return
	}
	payDetails, err := paymentproto.UnmarshalPaymentDetails(req.SerializedPaymentDetails)
	if err != nil {
		p.log.Warnf("wallet=%s merchant ack skipped: malformed payment details: %v", walletID, err)
		return
	}
	if payDetails.PaymentURL == "" {
		p.log.Warnf("wallet=%s merchant ack skipped: no payment_url", walletID)
		return
	}

	lock.Lock()
	refundAddr, err := w.NewRefundAddress(ctx)
	lock.Unlock()
	if err != nil {
		p.log.Warnf("wallet=%s merchant ack skipped: %v", walletID, err)
		return
	}
	refundScript, err := addressScript(refundAddr, p.params)
	if err != nil {
		p.log.Warnf("wallet=%s merchant ack skipped: %v", walletID, err)
		return
	}

	payment := paymentproto.Payment{
		MerchantData: payDetails.MerchantData,
		Transactions: [][]byte{rawTx},
		RefundTo:     []paymentproto.Output{{Amount: 0, Script: refundScript}},
	}

	ack, err := p.merchant.submitPayment(ctx, payDetails.PaymentURL, payment)
	if err != nil {
		p.log.Warnf("wallet=%s merchant ack failed (non-fatal, tx already broadcast): %v", walletID, err)
		return
	}
	details.Notes = appendMemo(details.Notes, ack.Memo)
}

// runRecording marks the spent inputs, persists the watcher, and writes
// the local transaction record (spec.md §4.6 step 5). None of these
// failures are fatal: the send already succeeded at broadcast.
func (p *Pipeline) runRecording(ctx context.Context, walletID string, w watcher.Watcher, lock lockUnlocker, inputs []coretypes.UTXO, outputs []coretypes.TxOutput, txid, malleableID chainhash.Hash, details coretypes.TxDetails) {
	p.emit(walletID, StageRecording)

	lock.Lock()
	if err := w.MarkSpent(ctx, inputs); err != nil {
		p.log.Warnf("wallet=%s mark-spent failed (non-fatal): %v", walletID, err)
	}
	if err := w.Persist(ctx); err != nil {
		p.log.Warnf("wallet=%s watcher persist failed (non-fatal): %v", walletID, err)
	}
	lock.Unlock()

	if p.recorder == nil {
		return
	}
	unsaved := coretypes.UnsavedTx{
		TxID:        txid,
		MalleableID: malleableID,
		Outputs:     recordingOutputs(inputs, outputs),
	}
	if err := p.recorder.RecordTx(ctx, walletID, unsaved, details); err != nil {
		p.log.Warnf("wallet=%s transaction record write failed (non-fatal): %v", walletID, err)
	}
}

// recordingOutputs interleaves consumed inputs then produced outputs into
// one ordered sequence, each tagged IsInput, matching
// ABC_BridgeExtractOutputs's layout (spec.md §9).
func recordingOutputs(inputs []coretypes.UTXO, outputs []coretypes.TxOutput) []coretypes.TxOutput {
	combined := make([]coretypes.TxOutput, 0, len(inputs)+len(outputs))
	for _, in := range inputs {
		combined = append(combined, coretypes.TxOutput{
			IsInput: true,
			TxID:    in.TxHash,
			Address: in.AddressKey,
			Value:   in.Amount,
		})
	}
	combined = append(combined, outputs...)
	return combined
}

// lockUnlocker is the subset of sync.Mutex the merchant/recording helpers
// need; it lets them take the already-acquired per-wallet lock without
// importing sync directly into their signatures.
type lockUnlocker interface {
	Lock()
	Unlock()
}
