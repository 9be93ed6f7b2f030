package descriptor

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// UpdateInput fills a PSBT input with what a signer and finalizer need to
// spend output vout of prevTx, derived at index: the previous output, the
// BIP-32 derivation and, depending on the template, the redeem script or
// taproot internal key.
func (d *Descriptor) UpdateInput(in *psbt.PInput, index uint32, prevTx *wire.MsgTx, vout uint32) error {
	if int(vout) >= len(prevTx.TxOut) {
		return fmt.Errorf("previous tx %s has no output %d", prevTx.TxHash(), vout)
	}
	prevOut := prevTx.TxOut[vout]

	script, err := d.ScriptAt(index)
	if err != nil {
		return err
	}
	if !bytes.Equal(script, prevOut.PkScript) {
		return fmt.Errorf("%w: %s:%d at index %d", ErrScriptMismatch, prevTx.TxHash(), vout, index)
	}

	pub, err := d.PubKeyAt(index)
	if err != nil {
		return err
	}
	fp, path := d.DerivationAt(index)

	switch d.Type {
	case Pkh:
		in.NonWitnessUtxo = prevTx
	case Wpkh, ShWpkh, Tr:
		in.WitnessUtxo = wire.NewTxOut(prevOut.Value, prevOut.PkScript)
	}

	if d.Type == ShWpkh {
		redeem, err := d.RedeemScriptAt(index)
		if err != nil {
			return err
		}
		in.RedeemScript = redeem
	}

	if d.Type == Tr {
		xonly := schnorr.SerializePubKey(pub)
		in.TaprootInternalKey = xonly
		in.TaprootBip32Derivation = []*psbt.TaprootBip32Derivation{{
			XOnlyPubKey:          xonly,
			MasterKeyFingerprint: FingerprintUint32(fp),
			Bip32Path:            path,
		}}
		return nil
	}

	in.Bip32Derivation = []*psbt.Bip32Derivation{{
		PubKey:               pub.SerializeCompressed(),
		MasterKeyFingerprint: FingerprintUint32(fp),
		Bip32Path:            path,
	}}
	return nil
}
