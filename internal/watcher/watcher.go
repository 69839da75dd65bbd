// Package watcher declares the external watcher interface the send
// pipeline depends on: UTXO set tracking for a wallet, address issuance,
// and per-address private key lookup (spec.md §1/§6: "addressed only via
// their interfaces"). The watcher itself — chain-scanning, address
// derivation, wallet file persistence — lives outside this module's scope.
package watcher

import (
	"context"

	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Watcher is the per-wallet interface the send pipeline uses to build,
// sign, and finalize a transaction.
type Watcher interface {
	// UTXOs returns every UTXO currently known for the wallet.
	UTXOs(ctx context.Context) ([]coretypes.UTXO, error)
	// NewChangeAddress issues a fresh change address for this wallet.
	NewChangeAddress(ctx context.Context) (string, error)
	// NewRefundAddress issues a fresh refund address for a BIP-70 payment.
	NewRefundAddress(ctx context.Context) (string, error)
	// PrivateKeyFor returns the private key bytes controlling addressKey,
	// the opaque key identifier carried on a coretypes.UTXO.
	PrivateKeyFor(ctx context.Context, addressKey string) ([]byte, error)
	// MarkSpent records that the given outpoints have been consumed by a
	// broadcast transaction.
	MarkSpent(ctx context.Context, spent []coretypes.UTXO) error
	// Persist flushes any pending watcher state to durable storage.
	// Failure here is non-fatal to the send pipeline (spec.md §4.6 step 5).
	Persist(ctx context.Context) error
}
