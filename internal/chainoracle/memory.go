package chainoracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Memory is an in-process chain. It mines blocks on demand, keeps a
// mempool of broadcast transactions and can be switched offline to
// simulate an unreachable node.
type Memory struct {
	mu      sync.Mutex
	params  *chaincfg.Params
	chain   []*wire.MsgBlock // index is height
	heights map[chainhash.Hash]uint32
	stale   map[chainhash.Hash]*wire.MsgBlock
	mempool []*wire.MsgTx
	wallets map[string]bool
	offline bool
	now     time.Time
}

var _ Node = (*Memory)(nil)

// NewMemory creates a chain holding only a genesis block.
func NewMemory(params *chaincfg.Params) *Memory {
	m := &Memory{
		params:  params,
		heights: make(map[chainhash.Hash]uint32),
		stale:   make(map[chainhash.Hash]*wire.MsgBlock),
		wallets: make(map[string]bool),
		now:     params.GenesisBlock.Header.Timestamp,
	}
	m.chain = append(m.chain, params.GenesisBlock)
	m.heights[params.GenesisBlock.BlockHash()] = 0
	return m
}

// SetOffline makes every call fail with ErrConnectivity while true.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// AddWallet registers a wallet name reported by WalletExists.
func (m *Memory) AddWallet(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[name] = true
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if m.offline {
		return fmt.Errorf("%w: memory chain offline", ErrConnectivity)
	}
	return nil
}

func (m *Memory) tip() types.BlockID {
	h := uint32(len(m.chain) - 1)
	return types.BlockID{Height: h, Hash: m.chain[h].BlockHash()}
}

// Mine appends a block holding a coinbase paying subsidy to pkScript
// followed by txs. Broadcast transactions in the mempool are included
// too. Returns the new block.
func (m *Memory) Mine(pkScript []byte, txs ...*wire.MsgTx) *wire.MsgBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mine(pkScript, txs)
}

func (m *Memory) mine(pkScript []byte, txs []*wire.MsgTx) *wire.MsgBlock {
	height := int32(len(m.chain))
	prev := m.chain[len(m.chain)-1]

	coinbase := wire.NewMsgTx(1)
	sigScript, _ := txscript.NewScriptBuilder().AddInt64(int64(height)).AddInt64(int64(len(m.stale))).Script()
	coinbase.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), sigScript, nil))
	coinbase.AddTxOut(wire.NewTxOut(blockchain.CalcBlockSubsidy(height, m.params), pkScript))

	all := append([]*wire.MsgTx{coinbase}, m.mempool...)
	all = append(all, txs...)
	m.mempool = nil

	utxs := make([]*btcutil.Tx, len(all))
	for i, tx := range all {
		utxs[i] = btcutil.NewTx(tx)
	}

	m.now = m.now.Add(10 * time.Minute)
	block := wire.NewMsgBlock(&wire.BlockHeader{
		Version:    4,
		PrevBlock:  prev.BlockHash(),
		MerkleRoot: blockchain.CalcMerkleRoot(utxs, false),
		Timestamp:  m.now,
		Bits:       m.params.PowLimitBits,
	})
	for _, tx := range all {
		block.AddTransaction(tx)
	}

	m.chain = append(m.chain, block)
	m.heights[block.BlockHash()] = uint32(height)
	return block
}

// Reorg disconnects every block above height, keeping them as stale
// blocks that are still served by Block.
func (m *Memory) Reorg(height uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h := uint32(len(m.chain) - 1); h > height; h-- {
		b := m.chain[h]
		hash := b.BlockHash()
		delete(m.heights, hash)
		m.stale[hash] = b
	}
	m.chain = m.chain[:height+1]
}

// Mempool returns the transactions broadcast since the last mined block.
func (m *Memory) Mempool() []*wire.MsgTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*wire.MsgTx(nil), m.mempool...)
}

// ChainTip returns the best block.
func (m *Memory) ChainTip(ctx context.Context) (types.BlockID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return types.BlockID{}, err
	}
	return m.tip(), nil
}

// IsInBestChain reports membership relative to tip. A tip that is not on
// the current chain yields Unknown.
func (m *Memory) IsInBestChain(ctx context.Context, block, tip types.BlockID) (Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return Unknown, err
	}
	if block.Height > tip.Height {
		return NotInChain, nil
	}
	if h, ok := m.heights[tip.Hash]; !ok || h != tip.Height {
		return Unknown, nil
	}
	if h, ok := m.heights[block.Hash]; ok && h == block.Height {
		return InChain, nil
	}
	return NotInChain, nil
}

// Block returns a best-chain or stale block.
func (m *Memory) Block(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if h, ok := m.heights[hash]; ok {
		return m.chain[h], nil
	}
	if b, ok := m.stale[hash]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash)
}

// BlockHeight returns the height of a best-chain block.
func (m *Memory) BlockHeight(ctx context.Context, hash chainhash.Hash) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	h, ok := m.heights[hash]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrBlockNotFound, hash)
	}
	return h, nil
}

// BlockHash returns the best-chain block hash at height.
func (m *Memory) BlockHash(ctx context.Context, height uint32) (chainhash.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return chainhash.Hash{}, err
	}
	if int(height) >= len(m.chain) {
		return chainhash.Hash{}, fmt.Errorf("%w: height %d", ErrBlockNotFound, height)
	}
	return m.chain[height].BlockHash(), nil
}

// Broadcast adds tx to the mempool; it is mined into the next block.
func (m *Memory) Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return chainhash.Hash{}, err
	}
	m.mempool = append(m.mempool, tx)
	return tx.TxHash(), nil
}

// GenerateToAddress mines n blocks whose coinbase pays addr.
func (m *Memory) GenerateToAddress(ctx context.Context, n int, addr btcutil.Address) ([]chainhash.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	hashes := make([]chainhash.Hash, 0, n)
	for range n {
		hashes = append(hashes, m.mine(pkScript, nil).BlockHash())
	}
	return hashes, nil
}

// WalletExists reports whether AddWallet was called with name.
func (m *Memory) WalletExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return false, err
	}
	return m.wallets[name], nil
}
