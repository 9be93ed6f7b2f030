package chainoracle

import (
	"context"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

var opTrue = []byte{0x51}

func blockID(height uint32, b *wire.MsgBlock) types.BlockID {
	return types.BlockID{Height: height, Hash: b.BlockHash()}
}

func TestMemory_Tip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&chaincfg.RegressionNetParams)

	tip, err := m.ChainTip(ctx)
	if err != nil {
		t.Fatalf("ChainTip: %v", err)
	}
	if tip.Height != 0 || tip.Hash != *chaincfg.RegressionNetParams.GenesisHash {
		t.Errorf("fresh tip = %s, want genesis", tip)
	}

	b1 := m.Mine(opTrue)
	b2 := m.Mine(opTrue)
	tip, _ = m.ChainTip(ctx)
	if tip != blockID(2, b2) {
		t.Errorf("tip = %s, want %s", tip, blockID(2, b2))
	}
	if b2.Header.PrevBlock != b1.BlockHash() {
		t.Error("blocks should link to their parent")
	}
	if !b2.Header.Timestamp.After(b1.Header.Timestamp) {
		t.Error("block times should increase")
	}

	h, err := m.BlockHeight(ctx, b1.BlockHash())
	if err != nil || h != 1 {
		t.Errorf("BlockHeight = %d, %v, want 1", h, err)
	}
	hash, err := m.BlockHash(ctx, 2)
	if err != nil || hash != b2.BlockHash() {
		t.Errorf("BlockHash(2) = %s, %v", hash, err)
	}
	if _, err := m.BlockHash(ctx, 3); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("BlockHash(3) error = %v, want ErrBlockNotFound", err)
	}
}

func TestMemory_Membership(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&chaincfg.RegressionNetParams)
	b1 := m.Mine(opTrue)
	b2 := m.Mine(opTrue)
	oldTip := blockID(2, b2)

	tests := []struct {
		name  string
		block types.BlockID
		tip   types.BlockID
		want  Membership
	}{
		{"in chain", blockID(1, b1), oldTip, InChain},
		{"tip itself", oldTip, oldTip, InChain},
		{"above tip", oldTip, blockID(1, b1), NotInChain},
		{"wrong height", types.BlockID{Height: 2, Hash: b1.BlockHash()}, oldTip, NotInChain},
	}
	for _, tt := range tests {
		got, err := m.IsInBestChain(ctx, tt.block, tt.tip)
		if err != nil {
			t.Fatalf("%s: IsInBestChain: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}

	m.Reorg(1)
	b2b := m.Mine(opTrue)
	newTip := blockID(2, b2b)

	if got, _ := m.IsInBestChain(ctx, oldTip, newTip); got != NotInChain {
		t.Errorf("reorged block membership = %s, want not-in-chain", got)
	}
	if got, _ := m.IsInBestChain(ctx, blockID(1, b1), oldTip); got != Unknown {
		t.Errorf("membership against a stale tip = %s, want unknown", got)
	}
	if _, err := m.Block(ctx, b2.BlockHash()); err != nil {
		t.Errorf("stale blocks should still be served: %v", err)
	}
}

func TestMemory_Offline(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&chaincfg.RegressionNetParams)
	m.SetOffline(true)

	if _, err := m.ChainTip(ctx); !errors.Is(err, ErrConnectivity) {
		t.Errorf("ChainTip error = %v, want ErrConnectivity", err)
	}
	if _, err := m.IsInBestChain(ctx, types.BlockID{}, types.BlockID{}); !errors.Is(err, ErrConnectivity) {
		t.Errorf("IsInBestChain error = %v, want ErrConnectivity", err)
	}

	m.SetOffline(false)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.ChainTip(cancelled); !errors.Is(err, ErrConnectivity) {
		t.Errorf("cancelled ChainTip error = %v, want ErrConnectivity", err)
	}
}

func TestMemory_BroadcastAndGenerate(t *testing.T) {
	ctx := context.Background()
	params := &chaincfg.RegressionNetParams
	m := NewMemory(params)

	addr, _ := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), params)
	hashes, err := m.GenerateToAddress(ctx, 3, addr)
	if err != nil {
		t.Fatalf("GenerateToAddress: %v", err)
	}
	if len(hashes) != 3 {
		t.Fatalf("got %d hashes, want 3", len(hashes))
	}

	blk, _ := m.Block(ctx, hashes[0])
	if blk.Transactions[0].TxOut[0].Value != 50*btcutil.SatoshiPerBitcoin {
		t.Errorf("coinbase value = %d, want 50 BTC", blk.Transactions[0].TxOut[0].Value)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: blk.Transactions[0].TxHash()}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, opTrue))
	if _, err := m.Broadcast(ctx, tx); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(m.Mempool()) != 1 {
		t.Fatal("broadcast tx should sit in the mempool")
	}

	mined := m.Mine(opTrue)
	if len(mined.Transactions) != 2 || mined.Transactions[1].TxHash() != tx.TxHash() {
		t.Error("next block should include the broadcast tx")
	}
	if len(m.Mempool()) != 0 {
		t.Error("mempool should be empty after mining")
	}
}

func TestMemory_WalletExists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(&chaincfg.RegressionNetParams)
	m.AddWallet("wallet-1")

	if ok, _ := m.WalletExists(ctx, "wallet-1"); !ok {
		t.Error("wallet-1 should exist")
	}
	if ok, _ := m.WalletExists(ctx, "other"); ok {
		t.Error("other should not exist")
	}
}
