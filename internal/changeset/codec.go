package changeset

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fxamacker/cbor/v2"
)

type revealRecord struct {
	Keychain types.Keychain `cbor:"1,keyasint"`
	Index    uint32         `cbor:"2,keyasint"`
}

type anchorRecord struct {
	Anchor types.Anchor   `cbor:"1,keyasint"`
	Txid   chainhash.Hash `cbor:"2,keyasint"`
}

// record is the serialized form. Every list is sorted so equal
// changesets encode to equal bytes.
type record struct {
	Reveals []revealRecord `cbor:"1,keyasint,omitempty"`
	Txs     [][]byte       `cbor:"2,keyasint,omitempty"`
	Anchors []anchorRecord `cbor:"3,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 24,
		MaxMapPairs:      1 << 24,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode serializes the changeset as deterministic CBOR. Transactions are
// stored in witness wire format.
func (c *ChangeSet) Encode() ([]byte, error) {
	var r record
	if c != nil {
		for k, idx := range c.LastRevealed {
			r.Reveals = append(r.Reveals, revealRecord{Keychain: k, Index: idx})
		}
		slices.SortFunc(r.Reveals, func(a, b revealRecord) int {
			return a.Keychain.Compare(b.Keychain)
		})

		txids := make([]chainhash.Hash, 0, len(c.Txs))
		for txid := range c.Txs {
			txids = append(txids, txid)
		}
		slices.SortFunc(txids, compareHash)
		for _, txid := range txids {
			b, err := tx.Encode(c.Txs[txid])
			if err != nil {
				return nil, fmt.Errorf("encode tx %s: %w", txid, err)
			}
			r.Txs = append(r.Txs, b)
		}

		for a := range c.Anchors {
			r.Anchors = append(r.Anchors, anchorRecord{Anchor: a.Anchor, Txid: a.Txid})
		}
		slices.SortFunc(r.Anchors, func(a, b anchorRecord) int {
			if d := types.CompareAnchors(a.Anchor, b.Anchor); d != 0 {
				return d
			}
			return compareHash(a.Txid, b.Txid)
		})
	}
	return encMode.Marshal(r)
}

// Decode parses a changeset produced by Encode.
func Decode(data []byte) (*ChangeSet, error) {
	var r record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode changeset: %w", err)
	}
	c := New()
	for _, rv := range r.Reveals {
		c.SetRevealed(rv.Keychain, rv.Index)
	}
	for i, b := range r.Txs {
		t, err := tx.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("decode changeset tx %d: %w", i, err)
		}
		c.AddTx(t)
	}
	for _, a := range r.Anchors {
		c.AddAnchor(a.Anchor, a.Txid)
	}
	return c, nil
}

func compareHash(a, b chainhash.Hash) int {
	return bytes.Compare(a[:], b[:])
}
