package tx

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Version is the transaction version used for wallet-built transactions.
const Version = 2

// Builder constructs unsigned transactions incrementally.
type Builder struct {
	tx *wire.MsgTx
}

// NewBuilder creates a new transaction builder with version 2 and
// locktime 0.
func NewBuilder() *Builder {
	return &Builder{tx: wire.NewMsgTx(Version)}
}

// AddInput adds an input spending prevOut with a final sequence and empty
// signature script and witness.
func (b *Builder) AddInput(prevOut wire.OutPoint) *Builder {
	in := wire.NewTxIn(&prevOut, nil, nil)
	in.Sequence = wire.MaxTxInSequenceNum
	b.tx.AddTxIn(in)
	return b
}

// AddOutput adds an output paying value to pkScript.
func (b *Builder) AddOutput(value btcutil.Amount, pkScript []byte) *Builder {
	b.tx.AddTxOut(wire.NewTxOut(int64(value), pkScript))
	return b
}

// SetLockTime sets the transaction lock time.
func (b *Builder) SetLockTime(lockTime uint32) *Builder {
	b.tx.LockTime = lockTime
	return b
}

// Build returns the constructed transaction.
// Does NOT validate; call Validate separately.
func (b *Builder) Build() *wire.MsgTx {
	return b.tx
}
