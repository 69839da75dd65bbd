package sendpipeline

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// buildUnsignedTx assembles a wire.MsgTx from the chosen inputs and the
// finalized output set (spec.md §4.6 step 1, "spendMakeTx").
func buildUnsignedTx(inputs []coretypes.UTXO, outputs []coretypes.TxOutput, params *chaincfg.Params) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)

	for _, in := range inputs {
		hash := in.TxHash
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&hash, in.Index), nil, nil))
	}

	for _, out := range outputs {
		addr, err := btcutil.DecodeAddress(out.Address, params)
		if err != nil {
			return nil, walleterr.Wrap(walleterr.KindInternal, "decode output address", err)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, walleterr.Wrap(walleterr.KindInternal, "build output script", err)
		}
		tx.AddTxOut(wire.NewTxOut(out.Value, script))
	}

	return tx, nil
}

// signInputs signs every input in place using the watcher-supplied private
// key for that input's address (spec.md §4.6 step 2). Failure aborts the
// pipeline with no side effects: nothing has been mutated on disk or on
// the wire yet.
func signInputs(tx *wire.MsgTx, inputs []coretypes.UTXO, privKeyFor func(addressKey string) ([]byte, error)) error {
	for i, in := range inputs {
		keyBytes, err := privKeyFor(in.AddressKey)
		if err != nil {
			return walleterr.Wrap(walleterr.KindCrypto, "fetch private key for input", err)
		}
		priv, _ := btcec.PrivKeyFromBytes(keyBytes)
		sigScript, err := txscript.SignatureScript(tx, i, in.Script, txscript.SigHashAll, priv, true)
		if err != nil {
			return walleterr.Wrap(walleterr.KindCrypto, "sign input", err)
		}
		tx.TxIn[i].SignatureScript = sigScript
	}
	return nil
}

// addressScript decodes a wallet address into its output script, used for
// the BIP-70 refund output (spec.md §4.6 step 4).
func addressScript(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.KindInternal, "decode refund address", err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.KindInternal, "build refund script", err)
	}
	return script, nil
}

// serializeTx returns the full raw wire-format bytes of a signed tx.
func serializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, walleterr.Wrap(walleterr.KindInternal, "serialize transaction", err)
	}
	return buf.Bytes(), nil
}

// nonMalleableTxID hashes a copy of tx with every input's signature script
// stripped, so two transactions differing only in signature encoding hash
// identically (spec.md §4.6 "Non-malleable txid"). malleableID is the raw
// sha256d of the fully signed wire form, kept for comparison/debugging.
func nonMalleableTxID(tx *wire.MsgTx) (nonMalleable, malleable chainhash.Hash) {
	malleable = tx.TxHash()

	stripped := tx.Copy()
	for _, in := range stripped.TxIn {
		in.SignatureScript = nil
		in.Witness = nil
	}
	nonMalleable = stripped.TxHash()
	return nonMalleable, malleable
}
