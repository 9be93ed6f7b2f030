// Command regtest runs two wallets against an in-process regtest chain.
//
// Usage: go run ./cmd/regtest/
//
// Alice mines 101 blocks to her receiving address, pays Bob, and both
// wallets follow the chain through a watcher until the payment confirms.
// Alice keeps her snapshot in an in-memory key-value store, Bob in an
// in-memory badger database.
package main

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/internal/watch"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"
)

const (
	matureBlocks = 101
	payment      = btcutil.Amount(12_345_678)
)

// participant bundles one wallet with its watcher.
type participant struct {
	name    string
	store   *wallet.Store
	watcher *watch.Watcher
}

func main() {
	klog.Init("info", false, "")
	logger := klog.WithComponent("regtest")
	ctx := context.Background()
	params := &chaincfg.RegressionNetParams
	node := chainoracle.NewMemory(params)

	logger.Info().Msg("=== Klingwallet regtest demo ===")

	// ── Phase 1: Wallets ────────────────────────────────────────────────

	aliceBackend, err := persist.NewDBBackend(storage.NewMemory(), "alice")
	if err != nil {
		logger.Fatal().Err(err).Msg("alice backend")
	}
	bobDB, err := storage.NewBadgerInMemory()
	if err != nil {
		logger.Fatal().Err(err).Msg("bob database")
	}
	defer bobDB.Close()
	bobBackend, err := persist.NewDBBackend(bobDB, "bob")
	if err != nil {
		logger.Fatal().Err(err).Msg("bob backend")
	}

	alice := newParticipant(logger, "alice", params, node, aliceBackend)
	defer alice.store.Close()
	bob := newParticipant(logger, "bob", params, node, bobBackend)
	defer bob.store.Close()

	// ── Phase 2: Fund Alice ─────────────────────────────────────────────

	aliceAddr, err := alice.store.GetAddress()
	if err != nil {
		logger.Fatal().Err(err).Msg("alice address")
	}
	if _, err := node.GenerateToAddress(ctx, matureBlocks, aliceAddr); err != nil {
		logger.Fatal().Err(err).Msg("generate")
	}
	alice.poll(ctx, logger)
	bob.poll(ctx, logger)
	alice.report(ctx, logger)

	// ── Phase 3: Alice pays Bob ─────────────────────────────────────────

	bobAddr, err := bob.store.GetAddress()
	if err != nil {
		logger.Fatal().Err(err).Msg("bob address")
	}
	tx, err := alice.store.SendToAddress(ctx, bobAddr, payment)
	if err != nil {
		logger.Fatal().Err(err).Msg("send")
	}
	txid, err := alice.store.Broadcast(ctx, tx)
	if err != nil {
		logger.Fatal().Err(err).Msg("broadcast")
	}
	logger.Info().
		Stringer("txid", txid).
		Str("to", bobAddr.String()).
		Stringer("amount", payment).
		Int("inputs", len(tx.TxIn)).
		Int("outputs", len(tx.TxOut)).
		Msg("Payment broadcast")
	alice.report(ctx, logger)

	// ── Phase 4: Confirm ────────────────────────────────────────────────

	if _, err := node.GenerateToAddress(ctx, 1, aliceAddr); err != nil {
		logger.Fatal().Err(err).Msg("generate")
	}
	alice.poll(ctx, logger)
	bob.poll(ctx, logger)
	alice.report(ctx, logger)
	bob.report(ctx, logger)

	bobBal, err := bob.store.Balance(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("bob balance")
	}
	if bobBal.Confirmed != payment {
		logger.Fatal().Stringer("got", bobBal.Confirmed).Stringer("want", payment).Msg("Bob's balance mismatch")
	}
	names, err := persist.SnapshotNames(bobDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("list snapshots")
	}
	logger.Info().Strs("wallets", names).Msg("Snapshots in bob's database")
	logger.Info().Msg("=== Payment confirmed ===")
}

func newParticipant(logger zerolog.Logger, name string, params *chaincfg.Params, node chainoracle.Node, backend persist.Backend) *participant {
	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		logger.Fatal().Err(err).Msg("generate mnemonic")
	}
	descs, err := wallet.DescriptorsFromMnemonic(mnemonic, "", params)
	if err != nil {
		logger.Fatal().Err(err).Msg("derive descriptors")
	}
	store, err := wallet.Open(wallet.StoreConfig{
		Name:        name,
		Params:      params,
		Descriptors: descs,
		Backend:     backend,
		Node:        node,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("wallet", name).Msg("open wallet")
	}
	w, err := watch.New(watch.Config{
		Wallet:   store,
		Chain:    node,
		Interval: time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("watcher")
	}
	return &participant{name: name, store: store, watcher: w}
}

func (p *participant) poll(ctx context.Context, logger zerolog.Logger) {
	if _, err := p.watcher.Poll(ctx); err != nil {
		logger.Fatal().Err(err).Str("wallet", p.name).Msg("poll")
	}
}

func (p *participant) report(ctx context.Context, logger zerolog.Logger) {
	bal, err := p.store.Balance(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("wallet", p.name).Msg("balance")
	}
	c := p.watcher.Commitment()
	logger.Info().
		Str("wallet", p.name).
		Uint32("height", p.watcher.Tip().Height).
		Stringer("confirmed", bal.Confirmed).
		Stringer("unconfirmed", bal.Unconfirmed).
		Str("commitment", hex.EncodeToString(c[:8])).
		Msg("Balance")
}
