// Package coretypes holds the plain data types shared across the wallet
// core: UTXOs, spend requests, transaction records, and fee-info snapshots
// (spec.md §3.2). None of these types carry behavior; they are the nouns
// every other package operates on.
package coretypes

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// UTXO is one spendable output known to the wallet's watcher (spec.md
// §3.2: "outpoint: (txHash, index), amount: satoshi, script: bytes,
// addressKey: opaque").
type UTXO struct {
	TxHash     chainhash.Hash
	Index      uint32
	Amount     int64
	Script     []byte
	AddressKey string
	Height     int32
	Spendable  bool
}

// TxOutput is one entry in an UnsavedTx's ordered output sequence: either
// a consumed input or a produced output of the same transaction (spec.md
// §3.2).
type TxOutput struct {
	IsInput bool
	TxID    chainhash.Hash
	Address string
	Value   int64
}

// FeeLevel names one of the three fee classes a send can target
// (spec.md §4.4).
type FeeLevel int

const (
	FeeLevelLow FeeLevel = iota
	FeeLevelStandard
	FeeLevelHigh
)

// TxDetails is the mutable per-send record carried alongside a
// transaction as it is built, signed, and recorded (spec.md §3.2).
type TxDetails struct {
	AmountSatoshi            int64
	AmountFeesMinersSatoshi  int64
	AmountFeesAirbitzSatoshi int64
	Notes                    string
	Category                 string
	Payee                    string
	BizID                    int64
}

// SendInfo is the caller-supplied description of a payment to build
// (spec.md §3.2/§4.5).
type SendInfo struct {
	WalletID          string
	Destination       string
	Amount            int64
	Details           TxDetails
	FeeLevel          FeeLevel
	PaymentRequest    []byte // raw serialized BIP-70 PaymentRequest, nil if absent
	IsTransfer        bool
	DestinationWallet string
}

// UnsavedTx is the in-flight record of a transaction as it moves through
// the send pipeline's states, before it is committed to the account's
// transaction history (spec.md §3.2).
type UnsavedTx struct {
	TxID        chainhash.Hash // non-malleable id
	MalleableID chainhash.Hash // raw sha256d id
	Outputs     []TxOutput
}

// SignedTx is the fully built and signed transaction the pipeline
// broadcasts, carrying the UTXOs it consumes and the fee actually paid.
type SignedTx struct {
	TxID   chainhash.Hash
	Signed []byte
	Inputs []UTXO
	Fee    int64
}

// BitcoinFeeInfo mirrors the general-info server's fee-rate snapshot
// (original_source abcd/General.hpp's BitcoinFeeInfo; spec.md §3.2/§6).
// ConfirmFees is indexed by desired confirmation blocks; index 0 is
// reserved and must never be read.
type BitcoinFeeInfo struct {
	ConfirmFees         [7]int64
	LowFeeBlock         int
	StandardFeeBlockLow  int
	StandardFeeBlockHigh int
	HighFeeBlock        int
	TargetFeePercentage float64
	// StandardFeeAmountThreshold is the transaction-value boundary (in
	// satoshi) that selects StandardFeeBlockLow below it and
	// StandardFeeBlockHigh at or above it (spec.md §4.4 step 2).
	StandardFeeAmountThreshold int64
}

// AirbitzFeeInfo mirrors the server-assisted account fee cut the
// general-info server also publishes alongside BitcoinFeeInfo
// (original_source abcd/General.hpp's AirbitzFeeInfo).
type AirbitzFeeInfo struct {
	Addresses      []string
	IncomingRate   float64
	OutgoingRate   float64
	MinSatoshi     int64
	MaxSatoshi     int64
	SendThreshold  int64
	SendPeriodSecs int64
}

// FeeInfo bundles both fee snapshots plus the time they were fetched, the
// cacheable unit fetched from the general-info server (spec.md §4.4).
type FeeInfo struct {
	Bitcoin   BitcoinFeeInfo
	Airbitz   AirbitzFeeInfo
	FetchedAt time.Time
}
