package sendpipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"github.com/airbitz-style/walletcore/internal/broadcast"
	"github.com/airbitz-style/walletcore/internal/feeinfo"
	"github.com/airbitz-style/walletcore/internal/paymentproto"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// testWallet is a minimal watcher.Watcher backed by real mainnet P2PKH
// addresses, so buildUnsignedTx's address decoding has something valid to
// work with (unlike watcher.Memory's placeholder "change-addr-N" strings,
// which are only meant to exercise the Memory type in isolation).
type testWallet struct {
	utxos        []coretypes.UTXO
	keys         map[string][]byte
	changeAddr   string
	refundAddr   string
	spent        []coretypes.UTXO
	persistCalls int
}

func newAddress(t *testing.T) (addr string, privBytes []byte, script []byte) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate private key: %v", err)
	}
	pkHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	a, err := btcutil.NewAddressPubKeyHash(pkHash, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("build address: %v", err)
	}
	s, err := txscript.PayToAddrScript(a)
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	return a.EncodeAddress(), priv.Serialize(), s
}

func hashByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func newTestWallet(t *testing.T, amounts ...int64) *testWallet {
	t.Helper()
	changeAddr, _, _ := newAddress(t)
	refundAddr, _, _ := newAddress(t)
	w := &testWallet{keys: make(map[string][]byte), changeAddr: changeAddr, refundAddr: refundAddr}
	for i, amount := range amounts {
		addr, priv, script := newAddress(t)
		w.keys[addr] = priv
		w.utxos = append(w.utxos, coretypes.UTXO{
			TxHash:     hashByte(byte(i + 1)),
			Index:      0,
			Amount:     amount,
			Script:     script,
			AddressKey: addr,
			Spendable:  true,
		})
	}
	return w
}

func (w *testWallet) UTXOs(ctx context.Context) ([]coretypes.UTXO, error) { return w.utxos, nil }
func (w *testWallet) NewChangeAddress(ctx context.Context) (string, error) { return w.changeAddr, nil }
func (w *testWallet) NewRefundAddress(ctx context.Context) (string, error) { return w.refundAddr, nil }
func (w *testWallet) PrivateKeyFor(ctx context.Context, addressKey string) ([]byte, error) {
	k, ok := w.keys[addressKey]
	if !ok {
		return nil, fmt.Errorf("no key for %s", addressKey)
	}
	return k, nil
}
func (w *testWallet) MarkSpent(ctx context.Context, spent []coretypes.UTXO) error {
	w.spent = append(w.spent, spent...)
	return nil
}
func (w *testWallet) Persist(ctx context.Context) error {
	w.persistCalls++
	return nil
}

type fakeEndpoint struct {
	name  string
	err   error
	calls int
}

func (f *fakeEndpoint) Name() string { return f.name }
func (f *fakeEndpoint) Submit(ctx context.Context, rawTx []byte) error {
	f.calls++
	return f.err
}

type fakeRecorder struct {
	calls int
	last  coretypes.UnsavedTx
}

func (r *fakeRecorder) RecordTx(ctx context.Context, walletID string, tx coretypes.UnsavedTx, details coretypes.TxDetails) error {
	r.calls++
	r.last = tx
	return nil
}

func testFeeCache(t *testing.T) *feeinfo.Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fee_cache.json")
	info := coretypes.BitcoinFeeInfo{
		ConfirmFees:                [7]int64{0, 200000, 150000, 120000, 100000, 80000, 60000},
		LowFeeBlock:                6,
		StandardFeeBlockLow:        3,
		StandardFeeBlockHigh:       2,
		HighFeeBlock:               1,
		TargetFeePercentage:        0.0001,
		StandardFeeAmountThreshold: 2000000,
	}
	return feeinfo.New(path, 24*time.Hour, func(ctx context.Context) (coretypes.FeeInfo, error) {
		return coretypes.FeeInfo{Bitcoin: info, FetchedAt: time.Now()}, nil
	})
}

func TestSendHappyPath(t *testing.T) {
	wallet := newTestWallet(t, 5_000_000, 2_000_000)
	dest, _, _ := newAddress(t)
	endpoint := &fakeEndpoint{name: "primary"}
	recorder := &fakeRecorder{}
	pipeline := New(testFeeCache(t), broadcast.NewDispatcher(endpoint), recorder, &chaincfg.MainNetParams)

	info := coretypes.SendInfo{
		WalletID:    "wallet-1",
		Destination: dest,
		Amount:      4_000_000,
		FeeLevel:    coretypes.FeeLevelStandard,
	}

	result, err := pipeline.Send(context.Background(), wallet, info, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Signed.Fee <= 0 {
		t.Fatalf("expected a positive fee, got %d", result.Signed.Fee)
	}
	if len(wallet.spent) != 1 {
		t.Fatalf("expected the single 5,000,000-sat utxo marked spent, got %d entries", len(wallet.spent))
	}
	if wallet.persistCalls != 1 {
		t.Fatalf("expected watcher persisted once, got %d", wallet.persistCalls)
	}
	if endpoint.calls != 1 {
		t.Fatalf("expected one broadcast attempt, got %d", endpoint.calls)
	}
	if recorder.calls != 1 {
		t.Fatalf("expected one recorded transaction, got %d", recorder.calls)
	}
	// inputs before outputs, interleaved (spec.md §9).
	if !result.Tx.Outputs[0].IsInput {
		t.Fatalf("expected first entry to be an input")
	}
	var sawOutput bool
	for _, o := range result.Tx.Outputs {
		if !o.IsInput {
			sawOutput = true
		}
	}
	if !sawOutput {
		t.Fatalf("expected at least one non-input entry in the recorded outputs")
	}
}

func TestSendInsufficientFundsFailsBeforeBroadcast(t *testing.T) {
	wallet := newTestWallet(t, 1000)
	dest, _, _ := newAddress(t)
	endpoint := &fakeEndpoint{name: "primary"}
	pipeline := New(testFeeCache(t), broadcast.NewDispatcher(endpoint), &fakeRecorder{}, &chaincfg.MainNetParams)

	info := coretypes.SendInfo{WalletID: "wallet-1", Destination: dest, Amount: 4_000_000, FeeLevel: coretypes.FeeLevelStandard}
	_, err := pipeline.Send(context.Background(), wallet, info, nil)
	if err == nil {
		t.Fatalf("expected insufficient funds error")
	}
	if endpoint.calls != 0 {
		t.Fatalf("expected no broadcast attempt on a build failure, got %d", endpoint.calls)
	}
}

func TestSendCancelledBeforeBroadcastAborts(t *testing.T) {
	wallet := newTestWallet(t, 5_000_000)
	dest, _, _ := newAddress(t)
	endpoint := &fakeEndpoint{name: "primary"}
	pipeline := New(testFeeCache(t), broadcast.NewDispatcher(endpoint), &fakeRecorder{}, &chaincfg.MainNetParams)

	token := NewCancelToken()
	token.Cancel()

	info := coretypes.SendInfo{WalletID: "wallet-1", Destination: dest, Amount: 1_000_000, FeeLevel: coretypes.FeeLevelStandard}
	_, err := pipeline.Send(context.Background(), wallet, info, token)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if endpoint.calls != 0 {
		t.Fatalf("expected cancellation to abort before broadcast, got %d calls", endpoint.calls)
	}
}

func TestSendAllBroadcastEndpointsFail(t *testing.T) {
	wallet := newTestWallet(t, 5_000_000)
	dest, _, _ := newAddress(t)
	endpoint := &fakeEndpoint{name: "primary", err: errors.New("rejected")}
	recorder := &fakeRecorder{}
	pipeline := New(testFeeCache(t), broadcast.NewDispatcher(endpoint), recorder, &chaincfg.MainNetParams)

	info := coretypes.SendInfo{WalletID: "wallet-1", Destination: dest, Amount: 1_000_000, FeeLevel: coretypes.FeeLevelStandard}
	_, err := pipeline.Send(context.Background(), wallet, info, nil)
	if err == nil {
		t.Fatalf("expected broadcast failure to propagate")
	}
	if recorder.calls != 0 {
		t.Fatalf("expected no recording when broadcast never succeeds, got %d", recorder.calls)
	}
}

// TestSendBIP70MerchantACKAppendsMemo covers scenario S6: a non-empty ack
// memo is appended to details.Notes with a newline separator. The
// merchant-failure half of S6 is covered by
// TestSendBIP70MerchantFailureIsNonFatal.
func TestSendBIP70MerchantACKAppendsMemo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ack := paymentproto.PaymentACK{Payment: paymentproto.Payment{}, Memo: "Thanks"}
		w.Write(ack.Marshal())
	}))
	defer server.Close()

	wallet := newTestWallet(t, 5_000_000)
	dest, _, _ := newAddress(t)

	details := paymentproto.PaymentDetails{
		Time:       1700000000,
		PaymentURL: server.URL,
		Outputs:    []paymentproto.Output{{Amount: 4_000_000, Script: []byte{0x51}}},
	}
	req := paymentproto.PaymentRequest{SerializedPaymentDetails: details.Marshal()}

	endpoint := &fakeEndpoint{name: "primary"}
	pipeline := New(testFeeCache(t), broadcast.NewDispatcher(endpoint), &fakeRecorder{}, &chaincfg.MainNetParams)

	info := coretypes.SendInfo{
		WalletID:       "wallet-1",
		Destination:    dest,
		Amount:         4_000_000,
		FeeLevel:       coretypes.FeeLevelStandard,
		PaymentRequest: req.Marshal(),
		Details:        coretypes.TxDetails{Notes: "hi"},
	}

	result, err := pipeline.Send(context.Background(), wallet, info, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Details.Notes != "hi\nThanks" {
		t.Fatalf("expected notes %q, got %q", "hi\nThanks", result.Details.Notes)
	}
}

func TestSendBIP70MerchantFailureIsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	wallet := newTestWallet(t, 5_000_000)
	dest, _, _ := newAddress(t)

	details := paymentproto.PaymentDetails{
		Time:       1700000000,
		PaymentURL: server.URL,
		Outputs:    []paymentproto.Output{{Amount: 4_000_000, Script: []byte{0x51}}},
	}
	req := paymentproto.PaymentRequest{SerializedPaymentDetails: details.Marshal()}

	endpoint := &fakeEndpoint{name: "primary"}
	recorder := &fakeRecorder{}
	pipeline := New(testFeeCache(t), broadcast.NewDispatcher(endpoint), recorder, &chaincfg.MainNetParams)

	info := coretypes.SendInfo{
		WalletID:       "wallet-1",
		Destination:    dest,
		Amount:         4_000_000,
		FeeLevel:       coretypes.FeeLevelStandard,
		PaymentRequest: req.Marshal(),
	}

	result, err := pipeline.Send(context.Background(), wallet, info, nil)
	if err != nil {
		t.Fatalf("expected success despite merchant failure, got: %v", err)
	}
	if result.Details.Notes != "" {
		t.Fatalf("expected notes untouched on merchant failure, got %q", result.Details.Notes)
	}
	if recorder.calls != 1 {
		t.Fatalf("expected recording to still happen, got %d", recorder.calls)
	}
}
