// Package tx holds transaction helpers shared by the wallet engine:
// boundary validation, value conservation and unsigned assembly.
package tx

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// Encode serializes a transaction in witness wire format.
func Encode(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize tx: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a wire-format transaction and rejects trailing bytes.
func Decode(b []byte) (*wire.MsgTx, error) {
	r := bytes.NewReader(b)
	var tx wire.MsgTx
	if err := tx.Deserialize(r); err != nil {
		return nil, fmt.Errorf("deserialize tx: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("deserialize tx: %d trailing bytes", r.Len())
	}
	return &tx, nil
}

// Spends reports whether tx has an input spending op.
func Spends(tx *wire.MsgTx, op wire.OutPoint) bool {
	for _, in := range tx.TxIn {
		if in.PreviousOutPoint == op {
			return true
		}
	}
	return false
}

// IsCoinBase reports whether tx is a coinbase transaction.
func IsCoinBase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return prev.Index == wire.MaxPrevOutIndex && prev.Hash == [32]byte{}
}
