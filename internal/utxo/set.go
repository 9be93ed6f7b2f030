// Package utxo resolves the wallet's unspent outputs from the transaction
// graph and the chain oracle.
package utxo

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	"github.com/Klingon-tech/klingwallet/internal/txgraph"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// UTXO is an owned output that is unspent at some chain tip.
type UTXO struct {
	Outpoint wire.OutPoint
	TxOut    *wire.TxOut
	Keychain types.Keychain
	Index    uint32
	// Anchor is the best-chain block confirming the output, nil when
	// unconfirmed.
	Anchor *types.Anchor
}

// Value returns the output amount.
func (u *UTXO) Value() btcutil.Amount {
	return btcutil.Amount(u.TxOut.Value)
}

// Confirmed reports whether the output is in the best chain.
func (u *UTXO) Confirmed() bool {
	return u.Anchor != nil
}

// Filter selects keychains. A nil Filter matches every keychain.
type Filter func(types.Keychain) bool

// Keychain returns a filter matching exactly k.
func Keychain(k types.Keychain) Filter {
	return func(o types.Keychain) bool { return o == k }
}

// List returns the owned outputs of the graph that are not spent at tip,
// in graph order. Ownership is resolved against the currently revealed
// scripts, so an output becomes listed as soon as its index is revealed.
func List(ctx context.Context, g *txgraph.Graph, oracle chainoracle.ChainOracle, tip types.BlockID, match Filter) ([]UTXO, error) {
	var out []UTXO
	for o := range g.AllOutputs() {
		if o.Owner == nil || (match != nil && !match(o.Owner.Keychain)) {
			continue
		}
		spent, err := g.IsSpent(ctx, oracle, o.Outpoint, tip)
		if err != nil {
			return nil, fmt.Errorf("spend status of %s: %w", o.Outpoint, err)
		}
		if spent {
			continue
		}
		anchor, err := g.ConfirmedAnchor(ctx, oracle, o.Outpoint.Hash, tip)
		if err != nil {
			return nil, fmt.Errorf("confirmation of %s: %w", o.Outpoint.Hash, err)
		}
		out = append(out, UTXO{
			Outpoint: o.Outpoint,
			TxOut:    o.TxOut,
			Keychain: o.Owner.Keychain,
			Index:    o.Owner.Index,
			Anchor:   anchor,
		})
	}
	return out, nil
}

// Total sums the values of utxos.
func Total(utxos []UTXO) btcutil.Amount {
	var sum btcutil.Amount
	for i := range utxos {
		sum += utxos[i].Value()
	}
	return sum
}
