// Package watch keeps a wallet in step with the chain by polling the node
// for a new tip.
package watch

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/utxo"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultReorgDepth is how many blocks below the fork point are scanned
// again after a reorg.
const DefaultReorgDepth = 6

// Wallet is the part of wallet.Store the watcher drives.
type Wallet interface {
	Name() string
	Sync(ctx context.Context, fromHeight uint32) (uint32, error)
	ListUnspent(ctx context.Context) ([]utxo.UTXO, error)
}

// Config configures a Watcher.
type Config struct {
	Wallet     Wallet
	Chain      chainoracle.Source
	Interval   time.Duration // Time between polls.
	Timeout    time.Duration // Deadline of a single poll; zero means none.
	FromHeight uint32        // First height scanned.
	ReorgDepth uint32        // Defaults to DefaultReorgDepth.
}

// Watcher polls the chain tip and syncs the wallet when it moves. Every
// change of the unspent set is logged with its commitment.
type Watcher struct {
	cfg        Config
	tip        types.BlockID
	synced     bool
	commitment [crypto.DigestSize]byte
	logger     zerolog.Logger
}

// New creates a watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.Wallet == nil || cfg.Chain == nil {
		return nil, fmt.Errorf("watcher needs a wallet and a chain")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if cfg.ReorgDepth == 0 {
		cfg.ReorgDepth = DefaultReorgDepth
	}
	return &Watcher{
		cfg:    cfg,
		logger: klog.WithComponent("watch").With().Str("wallet", cfg.Wallet.Name()).Logger(),
	}, nil
}

// Tip returns the last tip the wallet was synced to.
func (w *Watcher) Tip() types.BlockID {
	return w.tip
}

// Commitment returns the commitment of the unspent set after the last
// poll.
func (w *Watcher) Commitment() [crypto.DigestSize]byte {
	return w.commitment
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on
// the next tick.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.cfg.Interval).Uint32("from", w.cfg.FromHeight).Msg("Watcher started")
	w.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Watcher stopped")
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}
	if _, err := w.Poll(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("Poll failed")
	}
}

// Poll syncs the wallet when the tip moved and reports whether the
// unspent set changed.
func (w *Watcher) Poll(ctx context.Context) (bool, error) {
	tip, err := w.cfg.Chain.ChainTip(ctx)
	if err != nil {
		return false, err
	}
	if w.synced && tip == w.tip {
		return false, nil
	}

	from, err := w.scanStart(ctx, tip)
	if err != nil {
		return false, err
	}
	if _, err := w.cfg.Wallet.Sync(ctx, from); err != nil {
		return false, fmt.Errorf("sync from %d: %w", from, err)
	}
	w.tip = tip
	w.synced = true

	utxos, err := w.cfg.Wallet.ListUnspent(ctx)
	if err != nil {
		return false, err
	}
	c := utxo.Commitment(utxos)
	if c == w.commitment {
		w.logger.Debug().Uint32("height", tip.Height).Msg("Tip advanced")
		return false, nil
	}
	w.commitment = c
	w.logger.Info().
		Uint32("height", tip.Height).
		Int("utxos", len(utxos)).
		Stringer("total", utxo.Total(utxos)).
		Str("commitment", hex.EncodeToString(c[:])).
		Msg("Unspent set changed")
	return true, nil
}

// scanStart returns the first height to scan for tip. After a reorg the
// scan restarts ReorgDepth blocks below the fork point, which is taken as
// the lower of the two tips. A reorg reaching deeper than that is not
// rescanned.
func (w *Watcher) scanStart(ctx context.Context, tip types.BlockID) (uint32, error) {
	if !w.synced {
		return w.cfg.FromHeight, nil
	}
	reorged := tip.Height < w.tip.Height
	if !reorged {
		hash, err := w.cfg.Chain.BlockHash(ctx, w.tip.Height)
		if err != nil {
			return 0, err
		}
		reorged = hash != w.tip.Hash
	}
	if !reorged {
		return w.tip.Height + 1, nil
	}

	fork := min(tip.Height, w.tip.Height)
	from := w.cfg.FromHeight
	if fork > from+w.cfg.ReorgDepth {
		from = fork - w.cfg.ReorgDepth
	}
	w.logger.Warn().
		Str("old_tip", w.tip.String()).
		Str("new_tip", tip.String()).
		Uint32("rescan_from", from).
		Msg("Reorg detected")
	return from, nil
}
