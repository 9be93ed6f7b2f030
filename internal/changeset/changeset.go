// Package changeset defines the mergeable delta that records every
// mutation of the keychain index and the transaction graph.
package changeset

import (
	"maps"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxAnchor ties an anchor to the transaction it confirms.
type TxAnchor struct {
	Anchor types.Anchor
	Txid   chainhash.Hash
}

// ChangeSet is a delta over the wallet's watch state. Merging is
// associative, commutative and idempotent: LastRevealed keeps the per
// keychain maximum, Txs and Anchors are set unions.
type ChangeSet struct {
	LastRevealed map[types.Keychain]uint32
	Txs          map[chainhash.Hash]*wire.MsgTx
	Anchors      map[TxAnchor]struct{}
}

// New returns an empty changeset.
func New() *ChangeSet {
	return &ChangeSet{
		LastRevealed: make(map[types.Keychain]uint32),
		Txs:          make(map[chainhash.Hash]*wire.MsgTx),
		Anchors:      make(map[TxAnchor]struct{}),
	}
}

// IsEmpty reports whether the changeset holds no reveal and no graph
// deltas. A nil changeset is empty.
func (c *ChangeSet) IsEmpty() bool {
	return c == nil || len(c.LastRevealed) == 0 && len(c.Txs) == 0 && len(c.Anchors) == 0
}

// SetRevealed records a reveal cursor, keeping the larger index.
func (c *ChangeSet) SetRevealed(k types.Keychain, index uint32) {
	if c.LastRevealed == nil {
		c.LastRevealed = make(map[types.Keychain]uint32)
	}
	if cur, ok := c.LastRevealed[k]; !ok || index > cur {
		c.LastRevealed[k] = index
	}
}

// AddTx records a transaction.
func (c *ChangeSet) AddTx(tx *wire.MsgTx) {
	if c.Txs == nil {
		c.Txs = make(map[chainhash.Hash]*wire.MsgTx)
	}
	txid := tx.TxHash()
	if _, ok := c.Txs[txid]; !ok {
		c.Txs[txid] = tx
	}
}

// AddAnchor records that txid is confirmed by anchor.
func (c *ChangeSet) AddAnchor(anchor types.Anchor, txid chainhash.Hash) {
	if c.Anchors == nil {
		c.Anchors = make(map[TxAnchor]struct{})
	}
	c.Anchors[TxAnchor{Anchor: anchor, Txid: txid}] = struct{}{}
}

// Merge folds o into c. A transaction already present in c is kept.
func (c *ChangeSet) Merge(o *ChangeSet) {
	if o == nil {
		return
	}
	for k, idx := range o.LastRevealed {
		c.SetRevealed(k, idx)
	}
	for _, tx := range o.Txs {
		c.AddTx(tx)
	}
	for a := range o.Anchors {
		c.AddAnchor(a.Anchor, a.Txid)
	}
}

// Clone returns a copy of c. Transactions are shared; they are never
// mutated once recorded.
func (c *ChangeSet) Clone() *ChangeSet {
	out := New()
	if c == nil {
		return out
	}
	maps.Copy(out.LastRevealed, c.LastRevealed)
	maps.Copy(out.Txs, c.Txs)
	maps.Copy(out.Anchors, c.Anchors)
	return out
}

// Equal reports whether two changesets hold the same deltas.
func (c *ChangeSet) Equal(o *ChangeSet) bool {
	if c.IsEmpty() || o.IsEmpty() {
		return c.IsEmpty() && o.IsEmpty()
	}
	if !maps.Equal(c.LastRevealed, o.LastRevealed) || !maps.Equal(c.Anchors, o.Anchors) {
		return false
	}
	if len(c.Txs) != len(o.Txs) {
		return false
	}
	for txid := range c.Txs {
		if _, ok := o.Txs[txid]; !ok {
			return false
		}
	}
	return true
}
