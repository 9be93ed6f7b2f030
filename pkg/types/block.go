package types

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockID identifies a block by height and hash.
type BlockID struct {
	Height uint32         `cbor:"1,keyasint"`
	Hash   chainhash.Hash `cbor:"2,keyasint"`
}

// String returns "height:hash".
func (b BlockID) String() string {
	return fmt.Sprintf("%d:%s", b.Height, b.Hash)
}

// Anchor records the block a transaction was confirmed in.
type Anchor struct {
	Block BlockID `cbor:"1,keyasint"`
	Time  int64   `cbor:"2,keyasint"` // Block header timestamp, unix seconds.
}

// CompareAnchors orders anchors by height, then hash, then time.
func CompareAnchors(a, b Anchor) int {
	if c := cmp.Compare(a.Block.Height, b.Block.Height); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Block.Hash[:], b.Block.Hash[:]); c != 0 {
		return c
	}
	return cmp.Compare(a.Time, b.Time)
}
