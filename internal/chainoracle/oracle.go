// Package chainoracle answers questions about the best chain: its tip,
// whether a block belongs to it, and block contents.
package chainoracle

import (
	"context"
	"errors"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ErrConnectivity is returned when the chain source cannot be reached.
var ErrConnectivity = errors.New("chain source unreachable")

// ErrBlockNotFound is returned when the source does not know a block.
var ErrBlockNotFound = errors.New("block not found")

// Membership is the answer to "is this block in the best chain".
type Membership uint8

const (
	Unknown Membership = iota
	InChain
	NotInChain
)

func (m Membership) String() string {
	switch m {
	case InChain:
		return "in-chain"
	case NotInChain:
		return "not-in-chain"
	default:
		return "unknown"
	}
}

// ChainOracle reports the best chain tip and block membership.
type ChainOracle interface {
	ChainTip(ctx context.Context) (types.BlockID, error)
	// IsInBestChain reports whether block is in the best chain ending at
	// tip. A block above tip is NotInChain.
	IsInBestChain(ctx context.Context, block, tip types.BlockID) (Membership, error)
}

// Source is a ChainOracle that also serves blocks.
type Source interface {
	ChainOracle
	Block(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error)
	BlockHeight(ctx context.Context, hash chainhash.Hash) (uint32, error)
	BlockHash(ctx context.Context, height uint32) (chainhash.Hash, error)
}

// Node is a Source that can also relay transactions and, on regtest,
// mine blocks.
type Node interface {
	Source
	Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error)
	GenerateToAddress(ctx context.Context, n int, addr btcutil.Address) ([]chainhash.Hash, error)
	WalletExists(ctx context.Context, name string) (bool, error)
}
