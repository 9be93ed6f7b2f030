// Package txgraph stores the transactions relevant to a wallet together
// with the blocks that confirm them.
package txgraph

import (
	"bytes"
	"cmp"
	"context"
	"iter"
	"maps"
	"slices"

	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	"github.com/Klingon-tech/klingwallet/internal/changeset"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	ktx "github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Owner resolves a script to the keychain index that revealed it.
type Owner interface {
	Lookup(script []byte) (types.Keychain, uint32, bool)
}

// Derivation names the keychain and index that produced a script.
type Derivation struct {
	Keychain types.Keychain
	Index    uint32
}

// Output is one recorded transaction output.
type Output struct {
	Outpoint wire.OutPoint
	TxOut    *wire.TxOut
	// Owner is nil when the script was not revealed by any keychain.
	Owner *Derivation
	// Anchor is the lowest recorded anchor of the transaction, nil when
	// it was only seen unconfirmed.
	Anchor *types.Anchor
}

// Graph indexes transactions, their anchors and the outpoints they spend.
// It is not safe for concurrent use.
type Graph struct {
	owner   Owner
	txs     map[chainhash.Hash]*wire.MsgTx
	anchors map[chainhash.Hash]map[types.Anchor]struct{}
	spends  map[wire.OutPoint][]chainhash.Hash
}

// New creates an empty graph tagging outputs through owner.
func New(owner Owner) *Graph {
	return &Graph{
		owner:   owner,
		txs:     make(map[chainhash.Hash]*wire.MsgTx),
		anchors: make(map[chainhash.Hash]map[types.Anchor]struct{}),
		spends:  make(map[wire.OutPoint][]chainhash.Hash),
	}
}

// ApplyTransaction records tx without an anchor. The transaction must
// already have passed tx.Validate. Applying a known transaction yields an
// empty changeset.
func (g *Graph) ApplyTransaction(tx *wire.MsgTx) *changeset.ChangeSet {
	cs := changeset.New()
	if g.insert(tx) {
		cs.AddTx(tx)
		klog.Graph.Debug().Str("txid", tx.TxHash().String()).Msg("transaction applied")
	}
	return cs
}

// ApplyBlock records every transaction of block that pays a revealed
// script or spends an owned output already in the graph, anchored at
// height. Other transactions are skipped.
func (g *Graph) ApplyBlock(block *wire.MsgBlock, height uint32) *changeset.ChangeSet {
	anchor := types.Anchor{
		Block: types.BlockID{Height: height, Hash: block.BlockHash()},
		Time:  block.Header.Timestamp.Unix(),
	}
	cs := changeset.New()
	relevant := 0
	for _, tx := range block.Transactions {
		if !g.isRelevant(tx) {
			continue
		}
		relevant++
		txid := tx.TxHash()
		if g.insert(tx) {
			cs.AddTx(tx)
		}
		if g.addAnchor(anchor, txid) {
			cs.AddAnchor(anchor, txid)
		}
	}
	klog.Graph.Debug().
		Str("block", anchor.Block.String()).
		Int("txs", len(block.Transactions)).
		Int("relevant", relevant).
		Msg("block applied")
	return cs
}

func (g *Graph) isRelevant(tx *wire.MsgTx) bool {
	for _, out := range tx.TxOut {
		if _, _, ok := g.owner.Lookup(out.PkScript); ok {
			return true
		}
	}
	for _, in := range tx.TxIn {
		prev, ok := g.txs[in.PreviousOutPoint.Hash]
		if !ok || int(in.PreviousOutPoint.Index) >= len(prev.TxOut) {
			continue
		}
		if _, _, ok := g.owner.Lookup(prev.TxOut[in.PreviousOutPoint.Index].PkScript); ok {
			return true
		}
	}
	return false
}

// insert adds tx and indexes its inputs. Reports false when tx was known.
func (g *Graph) insert(tx *wire.MsgTx) bool {
	txid := tx.TxHash()
	if _, ok := g.txs[txid]; ok {
		return false
	}
	g.txs[txid] = tx
	if ktx.IsCoinBase(tx) {
		return true
	}
	for _, in := range tx.TxIn {
		op := in.PreviousOutPoint
		spenders := g.spends[op]
		if i, found := slices.BinarySearchFunc(spenders, txid, compareHash); !found {
			g.spends[op] = slices.Insert(spenders, i, txid)
		}
	}
	return true
}

func (g *Graph) addAnchor(anchor types.Anchor, txid chainhash.Hash) bool {
	set, ok := g.anchors[txid]
	if !ok {
		set = make(map[types.Anchor]struct{})
		g.anchors[txid] = set
	}
	if _, ok := set[anchor]; ok {
		return false
	}
	set[anchor] = struct{}{}
	return true
}

// Tx returns a recorded transaction.
func (g *Graph) Tx(txid chainhash.Hash) (*wire.MsgTx, bool) {
	tx, ok := g.txs[txid]
	return tx, ok
}

// Len returns the number of recorded transactions.
func (g *Graph) Len() int {
	return len(g.txs)
}

// Anchors returns the anchors of txid, lowest first.
func (g *Graph) Anchors(txid chainhash.Hash) []types.Anchor {
	return slices.SortedFunc(maps.Keys(g.anchors[txid]), types.CompareAnchors)
}

// Spenders returns the recorded transactions that consume op.
func (g *Graph) Spenders(op wire.OutPoint) []chainhash.Hash {
	return slices.Clone(g.spends[op])
}

// ConfirmedAnchor returns the lowest anchor of txid at or below tip that
// the oracle places in the best chain. Nil means unconfirmed.
func (g *Graph) ConfirmedAnchor(ctx context.Context, oracle chainoracle.ChainOracle, txid chainhash.Hash, tip types.BlockID) (*types.Anchor, error) {
	for _, a := range g.Anchors(txid) {
		if a.Block.Height > tip.Height {
			break
		}
		m, err := oracle.IsInBestChain(ctx, a.Block, tip)
		if err != nil {
			return nil, err
		}
		if m == chainoracle.InChain {
			return &a, nil
		}
	}
	return nil, nil
}

// IsSpent reports whether a recorded transaction spends op as of tip. A
// spender counts when it is unconfirmed, or when one of its anchors at or
// below tip is in the best chain or of unknown membership. Spenders whose
// every anchor left the best chain do not count.
func (g *Graph) IsSpent(ctx context.Context, oracle chainoracle.ChainOracle, op wire.OutPoint, tip types.BlockID) (bool, error) {
	for _, txid := range g.spends[op] {
		anchors := g.Anchors(txid)
		if len(anchors) == 0 {
			return true, nil
		}
		for _, a := range anchors {
			if a.Block.Height > tip.Height {
				break
			}
			m, err := oracle.IsInBestChain(ctx, a.Block, tip)
			if err != nil {
				return false, err
			}
			if m != chainoracle.NotInChain {
				return true, nil
			}
		}
	}
	return false, nil
}

// AllOutputs yields every recorded output, owned or not. Transactions
// come in order of their lowest anchor height with unconfirmed ones last;
// ties are broken by txid, outputs by index. The sequence is computed
// when iteration starts and may be iterated again.
func (g *Graph) AllOutputs() iter.Seq[Output] {
	return func(yield func(Output) bool) {
		type entry struct {
			txid   chainhash.Hash
			anchor *types.Anchor
		}
		entries := make([]entry, 0, len(g.txs))
		for txid := range g.txs {
			e := entry{txid: txid}
			if as := g.Anchors(txid); len(as) > 0 {
				e.anchor = &as[0]
			}
			entries = append(entries, e)
		}
		slices.SortFunc(entries, func(a, b entry) int {
			switch {
			case a.anchor == nil && b.anchor != nil:
				return 1
			case a.anchor != nil && b.anchor == nil:
				return -1
			case a.anchor != nil:
				if c := cmp.Compare(a.anchor.Block.Height, b.anchor.Block.Height); c != 0 {
					return c
				}
			}
			return compareHash(a.txid, b.txid)
		})

		for _, e := range entries {
			for i, out := range g.txs[e.txid].TxOut {
				o := Output{
					Outpoint: wire.OutPoint{Hash: e.txid, Index: uint32(i)},
					TxOut:    out,
					Anchor:   e.anchor,
				}
				if k, idx, ok := g.owner.Lookup(out.PkScript); ok {
					o.Owner = &Derivation{Keychain: k, Index: idx}
				}
				if !yield(o) {
					return
				}
			}
		}
	}
}

// ApplyChangeSet records the transactions and anchors of cs.
func (g *Graph) ApplyChangeSet(cs *changeset.ChangeSet) {
	if cs == nil {
		return
	}
	for _, txid := range slices.SortedFunc(maps.Keys(cs.Txs), compareHash) {
		g.insert(cs.Txs[txid])
	}
	for a := range cs.Anchors {
		g.addAnchor(a.Anchor, a.Txid)
	}
}

// InitialChangeSet returns a changeset that recreates the whole graph.
func (g *Graph) InitialChangeSet() *changeset.ChangeSet {
	cs := changeset.New()
	for _, tx := range g.txs {
		cs.AddTx(tx)
	}
	for txid, set := range g.anchors {
		for a := range set {
			cs.AddAnchor(a, txid)
		}
	}
	return cs
}

func compareHash(a, b chainhash.Hash) int {
	return bytes.Compare(a[:], b[:])
}
