package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/keychain"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/txgraph"
	"github.com/Klingon-tech/klingwallet/internal/utxo"
	ktx "github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Builder turns a coin selection into a signed, finalized transaction.
type Builder struct {
	index   *keychain.Index
	graph   *txgraph.Graph
	signers *SignerRegistry
}

// NewBuilder returns a builder resolving descriptors through index,
// previous transactions through graph and keys through signers.
func NewBuilder(index *keychain.Index, graph *txgraph.Graph, signers *SignerRegistry) *Builder {
	return &Builder{index: index, graph: graph, signers: signers}
}

// Assemble builds the unsigned spend: one input per selected coin, the
// destination output and, when sel.Change is positive, a change output
// paying changeScript.
func (b *Builder) Assemble(sel *CoinSelection, dest []byte, amount btcutil.Amount, changeScript []byte) (*wire.MsgTx, error) {
	tb := ktx.NewBuilder()
	for _, u := range sel.Inputs {
		tb.AddInput(u.Outpoint)
	}
	tb.AddOutput(amount, dest)
	if sel.Change > 0 {
		if changeScript == nil {
			return nil, fmt.Errorf("change of %v needs a change script", sel.Change)
		}
		tb.AddOutput(sel.Change, changeScript)
	}
	tx := tb.Build()
	if err := ktx.CheckConservation(tx, prevOutFetcher(sel.Inputs), 0); err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return tx, nil
}

// Sign wraps tx in a PSBT, attaches each input's spending data from its
// keychain's descriptor and signs it with that keychain's signer. inputs
// must line up with tx.TxIn.
func (b *Builder) Sign(tx *wire.MsgTx, inputs []utxo.UTXO) (*psbt.Packet, error) {
	if len(inputs) != len(tx.TxIn) {
		return nil, fmt.Errorf("%d coins for %d inputs", len(inputs), len(tx.TxIn))
	}
	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("create psbt: %w", err)
	}
	prevOuts := prevOutFetcher(inputs)

	for i, u := range inputs {
		signer, ok := b.signers.Get(u.Keychain)
		if !ok {
			return nil, &SigningError{Input: i, Keychain: u.Keychain, Err: ErrNoSigner}
		}
		desc, ok := b.index.Descriptor(u.Keychain)
		if !ok {
			return nil, &SigningError{Input: i, Keychain: u.Keychain, Err: keychain.ErrUnknownKeychain}
		}
		prevTx, ok := b.graph.Tx(u.Outpoint.Hash)
		if !ok {
			return nil, &SigningError{Input: i, Keychain: u.Keychain, Err: fmt.Errorf("previous tx %s not in graph", u.Outpoint.Hash)}
		}
		if err := desc.UpdateInput(&p.Inputs[i], u.Index, prevTx, u.Outpoint.Index); err != nil {
			return nil, &SigningError{Input: i, Keychain: u.Keychain, Err: err}
		}
		if err := signer.SignInput(p, i, u.Index, prevOuts); err != nil {
			return nil, &SigningError{Input: i, Keychain: u.Keychain, Err: err}
		}
	}
	klog.Builder.Debug().Int("inputs", len(inputs)).Msg("psbt signed")
	return p, nil
}

// Finalize finalizes every input of p and extracts the network
// transaction. Inputs that cannot be finalized are reported together in a
// *FinalizationError.
func Finalize(p *psbt.Packet) (*wire.MsgTx, error) {
	var failed []InputError
	for i := range p.Inputs {
		if err := psbt.Finalize(p, i); err != nil {
			failed = append(failed, InputError{Index: i, Err: err})
		}
	}
	if len(failed) > 0 {
		return nil, &FinalizationError{Packet: p, Inputs: failed}
	}
	tx, err := psbt.Extract(p)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return tx, nil
}

func prevOutFetcher(inputs []utxo.UTXO) *txscript.MultiPrevOutFetcher {
	f := txscript.NewMultiPrevOutFetcher(nil)
	for _, u := range inputs {
		f.AddPrevOut(u.Outpoint, u.TxOut)
	}
	return f
}
