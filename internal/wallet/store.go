package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	"github.com/Klingon-tech/klingwallet/internal/changeset"
	"github.com/Klingon-tech/klingwallet/internal/keychain"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/internal/txgraph"
	"github.com/Klingon-tech/klingwallet/internal/utxo"
	"github.com/Klingon-tech/klingwallet/pkg/descriptor"
	ktx "github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"
)

// StoreConfig configures Open.
type StoreConfig struct {
	Name   string
	Params *chaincfg.Params
	// Descriptors maps keychains to descriptor strings. Descriptors with
	// private keys also get a signer.
	Descriptors map[types.Keychain]string
	Backend     persist.Backend
	Node        chainoracle.Node
}

// Store is a descriptor wallet: it owns the keychain index, the
// transaction graph, the signers and the pending changeset. All methods
// are serialized by one mutex, since a reveal, the graph entries it makes
// owned and the snapshot recording both must change together.
type Store struct {
	mu      sync.Mutex
	name    string
	params  *chaincfg.Params
	node    chainoracle.Node
	index   *keychain.Index
	graph   *txgraph.Graph
	signers *SignerRegistry
	builder *Builder
	persist *persist.Persist
	closed  bool
	log     zerolog.Logger
}

// Open registers the configured descriptors, loads the snapshot from the
// backend and applies it. Cursors stored for keychains that are not
// registered yet are kept until AddDescriptor registers them.
func Open(cfg StoreConfig) (*Store, error) {
	if cfg.Params == nil || cfg.Backend == nil || cfg.Node == nil {
		return nil, errors.New("store config needs params, backend and node")
	}
	if err := persist.ValidateName(cfg.Name); err != nil {
		return nil, err
	}

	index := keychain.New(cfg.Params)
	graph := txgraph.New(index)
	signers := NewSignerRegistry()
	s := &Store{
		name:    cfg.Name,
		params:  cfg.Params,
		node:    cfg.Node,
		index:   index,
		graph:   graph,
		signers: signers,
		builder: NewBuilder(index, graph, signers),
		persist: persist.New(cfg.Backend),
		log:     klog.WithWallet(cfg.Name),
	}

	for _, k := range sortedKeychains(cfg.Descriptors) {
		if err := s.register(k, cfg.Descriptors[k]); err != nil {
			return nil, err
		}
	}

	cs, err := s.persist.Load()
	if err != nil {
		return nil, err
	}
	if err := index.ApplyChangeSet(cs); err != nil {
		return nil, fmt.Errorf("apply snapshot: %w", err)
	}
	graph.ApplyChangeSet(cs)

	s.log.Info().
		Int("keychains", len(index.Keychains())).
		Int("signers", signers.Len()).
		Int("txs", graph.Len()).
		Msg("wallet opened")
	return s, nil
}

func sortedKeychains(m map[types.Keychain]string) []types.Keychain {
	ks := make([]types.Keychain, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	types.SortKeychains(ks)
	return ks
}

// register parses and registers a descriptor and, when it holds private
// keys, its signer. A multipath descriptor is rejected before any
// parsing of its branches.
func (s *Store) register(k types.Keychain, desc string) error {
	d, err := descriptor.Parse(desc)
	if err != nil {
		return fmt.Errorf("keychain %s: %w", k, err)
	}
	cs, err := s.index.Register(k, d)
	if err != nil {
		return err
	}
	s.persist.Stage(cs)
	if signer, err := NewDescriptorSigner(d); err == nil {
		s.signers.Add(k, signer)
	}
	return nil
}

// Name returns the wallet name.
func (s *Store) Name() string {
	return s.name
}

// Params returns the wallet's network parameters.
func (s *Store) Params() *chaincfg.Params {
	return s.params
}

// AddDescriptor registers a descriptor for a keychain after Open. A
// cursor loaded earlier for the keychain takes effect immediately.
func (s *Store) AddDescriptor(k types.Keychain, desc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.register(k, desc)
}

// Descriptors returns the public form of every registered descriptor.
func (s *Store) Descriptors() map[types.Keychain]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.Keychain]string)
	for _, k := range s.index.Keychains() {
		d, _ := s.index.Descriptor(k)
		out[k] = d.String()
	}
	return out
}

// LastRevealed returns the reveal cursor of k. It includes reveals whose
// commit failed and that are still pending.
func (s *Store) LastRevealed(k types.Keychain) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.LastRevealed(k)
}

// GetAddress returns the last revealed External address. When nothing was
// revealed yet, index 0 is revealed first. Pending changes are committed
// before the address is returned, so a returned address is always durable.
func (s *Store) GetAddress() (btcutil.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.index.Descriptor(types.External); !ok {
		return nil, ErrNoExternal
	}
	last, ok := s.index.LastRevealed(types.External)
	if !ok {
		return s.revealNext(types.External)
	}
	// A reveal whose commit failed is still pending.
	if err := s.persist.Commit(); err != nil {
		return nil, err
	}
	return s.addressAt(types.External, last)
}

// RevealNextExternalAddress reveals a fresh External address. The reveal
// is committed before the address is returned.
func (s *Store) RevealNextExternalAddress() (btcutil.Address, error) {
	return s.RevealNextAddress(types.External)
}

// RevealNextAddress reveals the next address of any keychain.
func (s *Store) RevealNextAddress(k types.Keychain) (btcutil.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.revealNext(k)
}

func (s *Store) revealNext(k types.Keychain) (btcutil.Address, error) {
	index, _, cs, err := s.index.RevealNext(k)
	if err != nil {
		return nil, err
	}
	s.persist.Stage(cs)
	if err := s.persist.Commit(); err != nil {
		return nil, err
	}
	s.log.Debug().Str("keychain", k.String()).Uint32("index", index).Msg("address revealed")
	return s.addressAt(k, index)
}

func (s *Store) addressAt(k types.Keychain, index uint32) (btcutil.Address, error) {
	d, ok := s.index.Descriptor(k)
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, keychain.ErrUnknownKeychain)
	}
	return d.AddressAt(index, s.params)
}

// SendToAddress builds and signs a transaction paying amount to addr from
// External coins, without a fee. Change, when there is any, goes to a
// freshly revealed Internal address that is committed before signing. The
// transaction is not broadcast; see Broadcast.
func (s *Store) SendToAddress(ctx context.Context, addr btcutil.Address, amount btcutil.Amount) (*wire.MsgTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if _, ok := s.index.Descriptor(types.External); !ok {
		return nil, ErrNoExternal
	}
	if !addr.IsForNet(s.params) {
		return nil, fmt.Errorf("%w: %s", types.ErrWrongNetwork, addr)
	}
	dest, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("destination script: %w", err)
	}

	coins, err := s.listUnspent(ctx, utxo.Keychain(types.External))
	if err != nil {
		return nil, err
	}
	sel, err := SelectCoins(coins, amount)
	if err != nil {
		return nil, err
	}

	var changeScript []byte
	if sel.Change > 0 {
		_, script, cs, err := s.index.RevealNext(types.Internal)
		if err != nil {
			return nil, fmt.Errorf("reveal change: %w", err)
		}
		s.persist.Stage(cs)
		if err := s.persist.Commit(); err != nil {
			return nil, err
		}
		changeScript = script
	}

	tx, err := s.builder.Assemble(sel, dest, amount, changeScript)
	if err != nil {
		return nil, err
	}
	p, err := s.builder.Sign(tx, sel.Inputs)
	if err != nil {
		return nil, err
	}
	final, err := Finalize(p)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("txid", final.TxHash().String()).
		Stringer("amount", amount).
		Stringer("change", sel.Change).
		Int("inputs", len(sel.Inputs)).
		Msg("transaction built")
	return final, nil
}

// Broadcast relays tx through the node and records it as unconfirmed.
func (s *Store) Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chainhash.Hash{}, ErrClosed
	}
	if err := ktx.Validate(tx); err != nil {
		return chainhash.Hash{}, err
	}
	txid, err := s.node.Broadcast(ctx, tx)
	if err != nil {
		return chainhash.Hash{}, err
	}
	s.persist.Stage(s.graph.ApplyTransaction(tx))
	return txid, s.persist.Commit()
}

// ApplyTransaction records an unconfirmed transaction. Returns nil when
// the transaction was already known.
func (s *Store) ApplyTransaction(tx *wire.MsgTx) (*changeset.ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := ktx.Validate(tx); err != nil {
		return nil, err
	}
	return s.stageAndCommit(s.graph.ApplyTransaction(tx))
}

// ApplyBlock fetches a block and its height from the node and records the
// transactions relevant to the wallet. Returns nil when nothing changed.
func (s *Store) ApplyBlock(ctx context.Context, hash chainhash.Hash) (*changeset.ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	cs, err := s.applyBlock(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.stageAndCommit(cs)
}

func (s *Store) applyBlock(ctx context.Context, hash chainhash.Hash) (*changeset.ChangeSet, error) {
	block, err := s.node.Block(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("fetch block %s: %w", hash, err)
	}
	height, err := s.node.BlockHeight(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("height of block %s: %w", hash, err)
	}
	return s.graph.ApplyBlock(validTxs(block, s.log), height), nil
}

// validTxs returns block with malformed transactions removed.
func validTxs(block *wire.MsgBlock, log zerolog.Logger) *wire.MsgBlock {
	out := &wire.MsgBlock{Header: block.Header, Transactions: make([]*wire.MsgTx, 0, len(block.Transactions))}
	for _, tx := range block.Transactions {
		if err := ktx.Validate(tx); err != nil {
			log.Warn().Err(err).Str("txid", tx.TxHash().String()).Msg("skipping malformed transaction")
			continue
		}
		out.Transactions = append(out.Transactions, tx)
	}
	return out
}

func (s *Store) stageAndCommit(cs *changeset.ChangeSet) (*changeset.ChangeSet, error) {
	if cs.IsEmpty() {
		return nil, nil
	}
	s.persist.Stage(cs)
	if err := s.persist.Commit(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Sync applies every best-chain block from fromHeight up to the tip and
// returns the tip height. Blocks applied before a failure stay staged and
// are committed with the next successful commit.
func (s *Store) Sync(ctx context.Context, fromHeight uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	tip, err := s.node.ChainTip(ctx)
	if err != nil {
		return 0, err
	}
	done := klog.Benchmark("sync")
	defer done()

	for h := fromHeight; h <= tip.Height; h++ {
		hash, err := s.node.BlockHash(ctx, h)
		if err != nil {
			return h, fmt.Errorf("hash at height %d: %w", h, err)
		}
		cs, err := s.applyBlock(ctx, hash)
		if err != nil {
			return h, err
		}
		s.persist.Stage(cs)
	}
	if err := s.persist.Commit(); err != nil {
		return tip.Height, err
	}
	s.log.Debug().Uint32("from", fromHeight).Uint32("tip", tip.Height).Msg("synced")
	return tip.Height, nil
}

// GetUTXOs returns the unspent outputs of keychain k at the current tip.
func (s *Store) GetUTXOs(ctx context.Context, k types.Keychain) ([]utxo.UTXO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listUnspent(ctx, utxo.Keychain(k))
}

// ListUnspent returns the unspent outputs of every keychain.
func (s *Store) ListUnspent(ctx context.Context) ([]utxo.UTXO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listUnspent(ctx, nil)
}

// Balance sums every keychain's unspent outputs by confirmation.
func (s *Store) Balance(ctx context.Context) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coins, err := s.listUnspent(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	return balanceOf(coins), nil
}

func (s *Store) listUnspent(ctx context.Context, match utxo.Filter) ([]utxo.UTXO, error) {
	if s.closed {
		return nil, ErrClosed
	}
	tip, err := s.node.ChainTip(ctx)
	if err != nil {
		return nil, err
	}
	return utxo.List(ctx, s.graph, s.node, tip, match)
}

// Pending returns the staged changes not yet committed.
func (s *Store) Pending() *changeset.ChangeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist.Pending()
}

// Snapshot returns a changeset recreating the wallet's whole watch state.
func (s *Store) Snapshot() *changeset.ChangeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := s.index.InitialChangeSet()
	cs.Merge(s.graph.InitialChangeSet())
	return cs
}

// Close commits pending changes and closes the backend. Calling Close
// twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.persist.Close()
	s.log.Info().Err(err).Msg("wallet closed")
	return err
}
