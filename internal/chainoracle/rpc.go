package chainoracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

// RPCConfig holds bitcoind connection settings.
type RPCConfig struct {
	Host string // host:port, optionally followed by /wallet/<name>
	User string
	Pass string
}

// RPC is a Node backed by bitcoind's JSON-RPC interface.
type RPC struct {
	client *rpcclient.Client
}

var _ Node = (*RPC)(nil)

// NewRPC creates a bitcoind client. No request is made until the first
// call.
func NewRPC(cfg RPCConfig) (*RPC, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc client: %w", err)
	}
	return &RPC{client: client}, nil
}

// receive waits for an rpcclient future, giving up when ctx is done.
func receive[T any](ctx context.Context, future func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := future()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrConnectivity, ctx.Err())
	case r := <-ch:
		return r.v, mapError(r.err)
	}
}

// mapError passes RPC errors from the node through and maps everything
// else to ErrConnectivity.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConnectivity, err)
}

// notFound maps bitcoind's "Block not found" error to ErrBlockNotFound.
func notFound(err error) error {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCBlockNotFound {
		return fmt.Errorf("%w: %s", ErrBlockNotFound, rpcErr.Message)
	}
	return err
}

// ChainTip returns the node's best block.
func (r *RPC) ChainTip(ctx context.Context) (types.BlockID, error) {
	info, err := receive(ctx, r.client.GetBlockChainInfoAsync().Receive)
	if err != nil {
		return types.BlockID{}, err
	}
	hash, err := chainhash.NewHashFromStr(info.BestBlockHash)
	if err != nil {
		return types.BlockID{}, fmt.Errorf("best block hash: %w", err)
	}
	return types.BlockID{Height: uint32(info.Blocks), Hash: *hash}, nil
}

// IsInBestChain checks block against the node's view. When tip itself has
// left the best chain the answer is Unknown.
func (r *RPC) IsInBestChain(ctx context.Context, block, tip types.BlockID) (Membership, error) {
	if block.Height > tip.Height {
		return NotInChain, nil
	}
	hdr, err := receive(ctx, r.client.GetBlockHeaderVerboseAsync(&block.Hash).Receive)
	if errors.Is(notFound(err), ErrBlockNotFound) {
		return Unknown, nil
	}
	if err != nil {
		return Unknown, err
	}
	if hdr.Confirmations < 0 || uint32(hdr.Height) != block.Height {
		return NotInChain, nil
	}
	if block == tip {
		return InChain, nil
	}

	tipHdr, err := receive(ctx, r.client.GetBlockHeaderVerboseAsync(&tip.Hash).Receive)
	if errors.Is(notFound(err), ErrBlockNotFound) {
		return Unknown, nil
	}
	if err != nil {
		return Unknown, err
	}
	if tipHdr.Confirmations < 0 {
		klog.Oracle.Debug().Str("tip", tip.String()).Msg("tip left the best chain")
		return Unknown, nil
	}
	return InChain, nil
}

// Block fetches a full block.
func (r *RPC) Block(ctx context.Context, hash chainhash.Hash) (*wire.MsgBlock, error) {
	block, err := receive(ctx, r.client.GetBlockAsync(&hash).Receive)
	if err != nil {
		return nil, notFound(err)
	}
	return block, nil
}

// BlockHeight returns the height of a block.
func (r *RPC) BlockHeight(ctx context.Context, hash chainhash.Hash) (uint32, error) {
	hdr, err := receive(ctx, r.client.GetBlockHeaderVerboseAsync(&hash).Receive)
	if err != nil {
		return 0, notFound(err)
	}
	return uint32(hdr.Height), nil
}

// BlockHash returns the hash of the best-chain block at height.
func (r *RPC) BlockHash(ctx context.Context, height uint32) (chainhash.Hash, error) {
	hash, err := receive(ctx, r.client.GetBlockHashAsync(int64(height)).Receive)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCInvalidParameter {
			return chainhash.Hash{}, fmt.Errorf("%w: height %d", ErrBlockNotFound, height)
		}
		return chainhash.Hash{}, err
	}
	return *hash, nil
}

// Broadcast submits a transaction to the node's mempool.
func (r *RPC) Broadcast(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	txid, err := receive(ctx, r.client.SendRawTransactionAsync(tx, false).Receive)
	if err != nil {
		return chainhash.Hash{}, err
	}
	klog.Oracle.Info().Str("txid", txid.String()).Msg("transaction broadcast")
	return *txid, nil
}

// GenerateToAddress mines n blocks paying addr. Regtest only.
func (r *RPC) GenerateToAddress(ctx context.Context, n int, addr btcutil.Address) ([]chainhash.Hash, error) {
	hashes, err := receive(ctx, r.client.GenerateToAddressAsync(int64(n), addr, nil).Receive)
	if err != nil {
		return nil, err
	}
	out := make([]chainhash.Hash, len(hashes))
	for i, h := range hashes {
		out[i] = *h
	}
	return out, nil
}

// WalletExists reports whether the node has a loaded wallet called name.
func (r *RPC) WalletExists(ctx context.Context, name string) (bool, error) {
	raw, err := receive(ctx, r.client.RawRequestAsync("listwallets", nil).Receive)
	if err != nil {
		return false, err
	}
	var wallets []string
	if err := json.Unmarshal(raw, &wallets); err != nil {
		return false, fmt.Errorf("listwallets: %w", err)
	}
	return slices.Contains(wallets, name), nil
}

// Close shuts the client down.
func (r *RPC) Close() {
	r.client.Shutdown()
	done := make(chan struct{})
	go func() {
		r.client.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}
