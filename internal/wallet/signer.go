package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/descriptor"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// Signer signs one PSBT input owned by a keychain. Key material never
// leaves the call.
type Signer interface {
	SignInput(p *psbt.Packet, input int, index uint32, prevOuts txscript.PrevOutputFetcher) error
}

// DescriptorSigner signs with the private key a descriptor derives at an
// index.
type DescriptorSigner struct {
	desc *descriptor.Descriptor
}

// NewDescriptorSigner returns a signer for d, or ErrNoPrivateKey when d
// holds only public keys.
func NewDescriptorSigner(d *descriptor.Descriptor) (*DescriptorSigner, error) {
	if !d.HasPrivateKey() {
		return nil, descriptor.ErrNoPrivateKey
	}
	return &DescriptorSigner{desc: d}, nil
}

// SignInput adds a signature for input to p. Segwit v0 and legacy inputs
// get a SIGHASH_ALL partial signature; taproot inputs get a key-path
// SIGHASH_DEFAULT signature.
func (s *DescriptorSigner) SignInput(p *psbt.Packet, input int, index uint32, prevOuts txscript.PrevOutputFetcher) error {
	tx := p.UnsignedTx
	if input < 0 || input >= len(tx.TxIn) {
		return fmt.Errorf("input %d out of range", input)
	}
	prev := prevOuts.FetchPrevOutput(tx.TxIn[input].PreviousOutPoint)
	if prev == nil {
		return fmt.Errorf("previous output of input %d unknown", input)
	}

	priv, err := s.desc.PrivKeyAt(index)
	if err != nil {
		return err
	}
	key := crypto.WrapKey(priv)
	defer key.Zero()

	in := &p.Inputs[input]
	if s.desc.Type == descriptor.Tr {
		sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
		hash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, input, prevOuts)
		if err != nil {
			return fmt.Errorf("taproot sighash: %w", err)
		}
		sig, err := key.SignTaproot(hash, nil)
		if err != nil {
			return err
		}
		in.TaprootKeySpendSig = sig
		return nil
	}

	var hash []byte
	switch s.desc.Type {
	case descriptor.Pkh:
		hash, err = txscript.CalcSignatureHash(prev.PkScript, txscript.SigHashAll, tx, input)
	case descriptor.ShWpkh:
		var redeem []byte
		if redeem, err = s.desc.RedeemScriptAt(index); err == nil {
			hash, err = txscript.CalcWitnessSigHash(redeem, txscript.NewTxSigHashes(tx, prevOuts), txscript.SigHashAll, tx, input, prev.Value)
		}
	default:
		hash, err = txscript.CalcWitnessSigHash(prev.PkScript, txscript.NewTxSigHashes(tx, prevOuts), txscript.SigHashAll, tx, input, prev.Value)
	}
	if err != nil {
		return fmt.Errorf("sighash: %w", err)
	}

	der, err := key.SignECDSA(hash)
	if err != nil {
		return err
	}
	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    key.PublicKey(),
		Signature: append(der, byte(txscript.SigHashAll)),
	})
	in.SighashType = txscript.SigHashAll
	return nil
}

// SignerRegistry maps keychains to their signers.
type SignerRegistry struct {
	signers map[types.Keychain]Signer
}

// NewSignerRegistry returns an empty registry.
func NewSignerRegistry() *SignerRegistry {
	return &SignerRegistry{signers: make(map[types.Keychain]Signer)}
}

// Add registers s for k, replacing any earlier signer.
func (r *SignerRegistry) Add(k types.Keychain, s Signer) {
	r.signers[k] = s
}

// Get returns the signer of k.
func (r *SignerRegistry) Get(k types.Keychain) (Signer, bool) {
	s, ok := r.signers[k]
	return s, ok
}

// Len returns the number of registered signers.
func (r *SignerRegistry) Len() int {
	return len(r.signers)
}
