package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	"github.com/Klingon-tech/klingwallet/internal/keychain"
	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/pkg/descriptor"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var regtest = &chaincfg.RegressionNetParams

type storeEnv struct {
	t      *testing.T
	ctx    context.Context
	dir    string
	chain  *chainoracle.Memory
	descs  map[types.Keychain]string
	store  *Store
	funded int
}

func newStoreEnv(t *testing.T) *storeEnv {
	t.Helper()
	descs, err := DefaultDescriptors(testSeed(9), regtest)
	if err != nil {
		t.Fatalf("DefaultDescriptors: %v", err)
	}
	return newStoreEnvWith(t, descs)
}

func newStoreEnvWith(t *testing.T, descs map[types.Keychain]string) *storeEnv {
	t.Helper()
	e := &storeEnv{
		t:     t,
		ctx:   context.Background(),
		dir:   t.TempDir(),
		chain: chainoracle.NewMemory(regtest),
		descs: descs,
	}
	e.store = e.open()
	t.Cleanup(func() { e.store.Close() })
	return e
}

func (e *storeEnv) open() *Store {
	e.t.Helper()
	backend, err := persist.NewFileBackend(e.dir, "test")
	if err != nil {
		e.t.Fatalf("NewFileBackend: %v", err)
	}
	s, err := Open(StoreConfig{
		Name:        "test",
		Params:      regtest,
		Descriptors: e.descs,
		Backend:     backend,
		Node:        e.chain,
	})
	if err != nil {
		e.t.Fatalf("Open: %v", err)
	}
	return s
}

func (e *storeEnv) reopen() {
	e.t.Helper()
	if err := e.store.Close(); err != nil {
		e.t.Fatalf("Close: %v", err)
	}
	e.store = e.open()
}

// mineTo mines empty blocks until the tip is at height.
func (e *storeEnv) mineTo(height uint32) {
	e.t.Helper()
	for {
		tip, err := e.chain.ChainTip(e.ctx)
		if err != nil {
			e.t.Fatal(err)
		}
		if tip.Height >= height {
			return
		}
		e.chain.Mine(nil)
	}
}

// fund mines a block paying amount to addr from an outside transaction
// and applies it. Returns the funding transaction.
func (e *storeEnv) fund(addr btcutil.Address, amount btcutil.Amount) *wire.MsgTx {
	e.t.Helper()
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		e.t.Fatal(err)
	}
	e.funded++
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{0xee, byte(e.funded)}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(amount), pkScript))
	block := e.chain.Mine(nil, tx)
	if _, err := e.store.ApplyBlock(e.ctx, block.BlockHash()); err != nil {
		e.t.Fatalf("ApplyBlock: %v", err)
	}
	return tx
}

func (e *storeEnv) address() btcutil.Address {
	e.t.Helper()
	addr, err := e.store.GetAddress()
	if err != nil {
		e.t.Fatalf("GetAddress: %v", err)
	}
	return addr
}

// foreignAddress returns an address no test wallet owns.
func foreignAddress(t *testing.T) btcutil.Address {
	t.Helper()
	descs, err := DefaultDescriptors(testSeed(0x42), regtest)
	if err != nil {
		t.Fatal(err)
	}
	d, err := descriptor.Parse(descs[types.External])
	if err != nil {
		t.Fatal(err)
	}
	addr, err := d.AddressAt(0, regtest)
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func TestStore_RevealAddresses(t *testing.T) {
	e := newStoreEnv(t)

	addrs := []btcutil.Address{e.address()}
	for range 2 {
		addr, err := e.store.RevealNextExternalAddress()
		if err != nil {
			t.Fatalf("RevealNextExternalAddress: %v", err)
		}
		addrs = append(addrs, addr)
	}
	seen := make(map[string]bool)
	for _, a := range addrs {
		if seen[a.String()] {
			t.Fatalf("address %s revealed twice", a)
		}
		seen[a.String()] = true
	}
	if last, ok := e.store.LastRevealed(types.External); !ok || last != 2 {
		t.Errorf("LastRevealed = %d, %v; want 2, true", last, ok)
	}
	if got := e.address(); got.String() != addrs[2].String() {
		t.Errorf("GetAddress = %s, want last revealed %s", got, addrs[2])
	}
	if !e.store.Pending().IsEmpty() {
		t.Error("reveals left pending changes")
	}

	e.reopen()
	if last, ok := e.store.LastRevealed(types.External); !ok || last != 2 {
		t.Errorf("after reload LastRevealed = %d, %v; want 2, true", last, ok)
	}
	if got := e.address(); got.String() != addrs[2].String() {
		t.Errorf("after reload GetAddress = %s, want %s", got, addrs[2])
	}
}

func TestStore_ReceiveConfirmed(t *testing.T) {
	e := newStoreEnv(t)
	addr := e.address()
	e.mineTo(99)
	funding := e.fund(addr, 10_000)

	utxos, err := e.store.GetUTXOs(e.ctx, types.External)
	if err != nil {
		t.Fatalf("GetUTXOs: %v", err)
	}
	if len(utxos) != 1 {
		t.Fatalf("got %d utxos, want 1", len(utxos))
	}
	u := utxos[0]
	if u.Outpoint.Hash != funding.TxHash() || u.Outpoint.Index != 0 {
		t.Errorf("outpoint = %s", u.Outpoint)
	}
	if u.Value() != 10_000 {
		t.Errorf("value = %v, want 10000 sat", u.Value())
	}
	if u.Index != 0 {
		t.Errorf("derivation index = %d, want 0", u.Index)
	}
	if u.Anchor == nil || u.Anchor.Block.Height != 100 {
		t.Fatalf("anchor = %+v, want height 100", u.Anchor)
	}

	bal, err := e.store.Balance(e.ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Confirmed != 10_000 || bal.Unconfirmed != 0 {
		t.Errorf("balance = %+v", bal)
	}

	// Applying the same block again changes nothing.
	hash, err := e.chain.BlockHash(e.ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := e.store.ApplyBlock(e.ctx, hash)
	if err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	if cs != nil {
		t.Errorf("re-applied block produced changes: %+v", cs)
	}
}

func TestStore_IrrelevantBlock(t *testing.T) {
	e := newStoreEnv(t)
	e.address()
	block := e.chain.Mine(nil)
	cs, err := e.store.ApplyBlock(e.ctx, block.BlockHash())
	if err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	if cs != nil {
		t.Errorf("irrelevant block produced changes")
	}
}

func TestStore_SendInsufficientFunds(t *testing.T) {
	e := newStoreEnv(t)
	e.fund(e.address(), 10_000)

	_, err := e.store.SendToAddress(e.ctx, foreignAddress(t), 20_000)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	if !e.store.Pending().IsEmpty() {
		t.Error("failed send staged changes")
	}
	if _, ok := e.store.LastRevealed(types.Internal); ok {
		t.Error("failed send revealed a change address")
	}
}

func TestStore_SendInvalid(t *testing.T) {
	e := newStoreEnv(t)
	e.fund(e.address(), 10_000)

	if _, err := e.store.SendToAddress(e.ctx, foreignAddress(t), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount error = %v, want ErrInvalidAmount", err)
	}
	mainnet, err := btcutil.DecodeAddress("bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.SendToAddress(e.ctx, mainnet, 1000); !errors.Is(err, types.ErrWrongNetwork) {
		t.Errorf("mainnet address error = %v, want ErrWrongNetwork", err)
	}
}

// verifyTx runs the script engine over every input of tx.
func verifyTx(t *testing.T, tx *wire.MsgTx, prevOuts *txscript.MultiPrevOutFetcher) {
	t.Helper()
	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	for i, in := range tx.TxIn {
		prev := prevOuts.FetchPrevOutput(in.PreviousOutPoint)
		if prev == nil {
			t.Fatalf("input %d: unknown previous output", i)
		}
		vm, err := txscript.NewEngine(prev.PkScript, tx, i, txscript.StandardVerifyFlags, nil, sigHashes, prev.Value, prevOuts)
		if err != nil {
			t.Fatalf("input %d: NewEngine: %v", i, err)
		}
		if err := vm.Execute(); err != nil {
			t.Fatalf("input %d: script failed: %v", i, err)
		}
	}
}

func TestStore_SendWithChange(t *testing.T) {
	e := newStoreEnv(t)
	funding := e.fund(e.address(), 10_000)
	dest := foreignAddress(t)

	tx, err := e.store.SendToAddress(e.ctx, dest, 3_000)
	if err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	if len(tx.TxIn) != 1 || len(tx.TxOut) != 2 {
		t.Fatalf("tx has %d inputs and %d outputs, want 1 and 2", len(tx.TxIn), len(tx.TxOut))
	}
	destScript, _ := txscript.PayToAddrScript(dest)
	if tx.TxOut[0].Value != 3_000 || string(tx.TxOut[0].PkScript) != string(destScript) {
		t.Errorf("payment output = %d to %x", tx.TxOut[0].Value, tx.TxOut[0].PkScript)
	}
	if tx.TxOut[0].Value+tx.TxOut[1].Value != 10_000 {
		t.Errorf("outputs sum to %d, want 10000", tx.TxOut[0].Value+tx.TxOut[1].Value)
	}
	if last, ok := e.store.LastRevealed(types.Internal); !ok || last != 0 {
		t.Errorf("change cursor = %d, %v; want 0, true", last, ok)
	}
	if !e.store.Pending().IsEmpty() {
		t.Error("change reveal left pending")
	}

	prevOuts := txscript.NewMultiPrevOutFetcher(nil)
	prevOuts.AddPrevOut(wire.OutPoint{Hash: funding.TxHash()}, funding.TxOut[0])
	verifyTx(t, tx, prevOuts)

	if _, err := e.store.Broadcast(e.ctx, tx); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(e.chain.Mempool()) != 1 {
		t.Fatalf("mempool holds %d txs, want 1", len(e.chain.Mempool()))
	}

	// The unconfirmed spend hides the funding coin and exposes the change.
	ext, err := e.store.GetUTXOs(e.ctx, types.External)
	if err != nil {
		t.Fatalf("GetUTXOs: %v", err)
	}
	if len(ext) != 0 {
		t.Errorf("external utxos = %d, want 0", len(ext))
	}
	bal, err := e.store.Balance(e.ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Confirmed != 0 || bal.Unconfirmed != 7_000 {
		t.Errorf("balance = %+v, want 7000 unconfirmed", bal)
	}

	block := e.chain.Mine(nil)
	if _, err := e.store.ApplyBlock(e.ctx, block.BlockHash()); err != nil {
		t.Fatalf("ApplyBlock: %v", err)
	}
	change, err := e.store.GetUTXOs(e.ctx, types.Internal)
	if err != nil {
		t.Fatalf("GetUTXOs: %v", err)
	}
	if len(change) != 1 || !change[0].Confirmed() || change[0].Value() != 7_000 {
		t.Errorf("change utxos = %+v", change)
	}
}

func TestStore_SendExactAmount(t *testing.T) {
	e := newStoreEnv(t)
	e.fund(e.address(), 10_000)

	tx, err := e.store.SendToAddress(e.ctx, foreignAddress(t), 10_000)
	if err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	if len(tx.TxOut) != 1 {
		t.Errorf("tx has %d outputs, want 1", len(tx.TxOut))
	}
	if _, ok := e.store.LastRevealed(types.Internal); ok {
		t.Error("exact send revealed a change address")
	}
}

func TestStore_SendMultipleInputs(t *testing.T) {
	e := newStoreEnv(t)
	a := e.fund(e.address(), 4_000)
	next, err := e.store.RevealNextExternalAddress()
	if err != nil {
		t.Fatal(err)
	}
	b := e.fund(next, 5_000)

	tx, err := e.store.SendToAddress(e.ctx, foreignAddress(t), 8_000)
	if err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	if len(tx.TxIn) != 2 {
		t.Fatalf("inputs = %d, want 2", len(tx.TxIn))
	}
	prevOuts := txscript.NewMultiPrevOutFetcher(nil)
	prevOuts.AddPrevOut(wire.OutPoint{Hash: a.TxHash()}, a.TxOut[0])
	prevOuts.AddPrevOut(wire.OutPoint{Hash: b.TxHash()}, b.TxOut[0])
	verifyTx(t, tx, prevOuts)
}

func TestStore_WatchOnly(t *testing.T) {
	descs, err := DefaultDescriptors(testSeed(9), regtest)
	if err != nil {
		t.Fatal(err)
	}
	public := make(map[types.Keychain]string)
	for k, s := range descs {
		d, err := descriptor.Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		public[k] = d.String()
	}
	e := newStoreEnvWith(t, public)
	e.fund(e.address(), 10_000)

	_, err = e.store.SendToAddress(e.ctx, foreignAddress(t), 1_000)
	var serr *SigningError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want *SigningError", err)
	}
	if serr.Input != 0 || serr.Keychain != types.External || !errors.Is(err, ErrNoSigner) {
		t.Errorf("signing error = %+v", serr)
	}
}

func TestStore_Reload(t *testing.T) {
	e := newStoreEnv(t)
	e.fund(e.address(), 10_000)
	if _, err := e.store.SendToAddress(e.ctx, foreignAddress(t), 2_500); err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	before := e.store.Snapshot()
	utxosBefore, err := e.store.ListUnspent(e.ctx)
	if err != nil {
		t.Fatal(err)
	}

	e.reopen()
	if !e.store.Snapshot().Equal(before) {
		t.Error("reloaded state differs")
	}
	utxosAfter, err := e.store.ListUnspent(e.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(utxosAfter) != len(utxosBefore) || utxosAfter[0].Outpoint != utxosBefore[0].Outpoint {
		t.Errorf("utxos after reload = %+v, want %+v", utxosAfter, utxosBefore)
	}
	if last, ok := e.store.LastRevealed(types.Internal); !ok || last != 0 {
		t.Errorf("change cursor after reload = %d, %v", last, ok)
	}
}

func TestStore_Sync(t *testing.T) {
	e := newStoreEnv(t)
	addr := e.address()
	pkScript, _ := txscript.PayToAddrScript(addr)

	e.chain.Mine(nil)
	e.chain.Mine(pkScript)
	e.chain.Mine(nil)

	tip, err := e.store.Sync(e.ctx, 0)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if tip != 3 {
		t.Errorf("synced to %d, want 3", tip)
	}
	utxos, err := e.store.GetUTXOs(e.ctx, types.External)
	if err != nil {
		t.Fatal(err)
	}
	if len(utxos) != 1 || utxos[0].Anchor == nil || utxos[0].Anchor.Block.Height != 2 {
		t.Fatalf("utxos = %+v, want the coinbase at height 2", utxos)
	}
	if !e.store.Pending().IsEmpty() {
		t.Error("sync left pending changes")
	}
}

func TestStore_Reorg(t *testing.T) {
	e := newStoreEnv(t)
	e.mineTo(4)
	e.fund(e.address(), 10_000)
	e.chain.Reorg(4)
	e.chain.Mine(nil)
	e.chain.Mine(nil)

	bal, err := e.store.Balance(e.ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Confirmed != 0 || bal.Unconfirmed != 10_000 {
		t.Errorf("balance after reorg = %+v, want 10000 unconfirmed", bal)
	}
}

func TestStore_NodeOffline(t *testing.T) {
	e := newStoreEnv(t)
	e.fund(e.address(), 10_000)
	e.chain.SetOffline(true)

	if _, err := e.store.Balance(e.ctx); !errors.Is(err, chainoracle.ErrConnectivity) {
		t.Errorf("Balance error = %v, want ErrConnectivity", err)
	}
	if _, err := e.store.SendToAddress(e.ctx, foreignAddress(t), 1_000); !errors.Is(err, chainoracle.ErrConnectivity) {
		t.Errorf("SendToAddress error = %v, want ErrConnectivity", err)
	}
	if _, ok := e.store.LastRevealed(types.Internal); ok {
		t.Error("failed send revealed a change address")
	}
}

func TestStore_AddDescriptorAfterReload(t *testing.T) {
	e := newStoreEnv(t)
	k := types.IncomingSwapCoin("c0ffee")
	desc := "wpkh(02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9)"
	if err := e.store.AddDescriptor(k, desc); err != nil {
		t.Fatalf("AddDescriptor: %v", err)
	}
	if _, err := e.store.RevealNextAddress(k); err != nil {
		t.Fatalf("RevealNextAddress: %v", err)
	}

	// The labeled keychain is not part of the configured descriptors, so
	// its cursor waits for AddDescriptor.
	e.reopen()
	if _, ok := e.store.Descriptors()[k]; ok {
		t.Fatal("labeled keychain registered without AddDescriptor")
	}
	if err := e.store.AddDescriptor(k, desc); err != nil {
		t.Fatalf("AddDescriptor: %v", err)
	}
	if last, ok := e.store.LastRevealed(k); !ok || last != 0 {
		t.Errorf("labeled cursor = %d, %v; want 0, true", last, ok)
	}
	if got := e.store.Descriptors()[k]; got == "" {
		t.Error("Descriptors does not list the labeled keychain")
	}
}

func TestStore_Closed(t *testing.T) {
	e := newStoreEnv(t)
	if err := e.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := e.store.GetAddress(); !errors.Is(err, ErrClosed) {
		t.Errorf("GetAddress error = %v, want ErrClosed", err)
	}
	if _, err := e.store.Balance(e.ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Balance error = %v, want ErrClosed", err)
	}
}

func TestStore_NoExternal(t *testing.T) {
	e := newStoreEnvWith(t, map[types.Keychain]string{
		types.IncomingSwapCoin("c0ffee"): "wpkh(02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9)",
	})
	if _, err := e.store.GetAddress(); !errors.Is(err, ErrNoExternal) {
		t.Errorf("GetAddress error = %v, want ErrNoExternal", err)
	}
	if _, err := e.store.SendToAddress(e.ctx, foreignAddress(t), 1_000); !errors.Is(err, ErrNoExternal) {
		t.Errorf("SendToAddress error = %v, want ErrNoExternal", err)
	}
}

// flakyBackend fails every Store while fail is set.
type flakyBackend struct {
	persist.Backend
	fail bool
}

func (b *flakyBackend) Store(data []byte) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.Backend.Store(data)
}

func TestStore_AddressNotReturnedUntilCommitted(t *testing.T) {
	dir := t.TempDir()
	file, err := persist.NewFileBackend(dir, "test")
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	backend := &flakyBackend{Backend: file, fail: true}
	descs, err := DefaultDescriptors(testSeed(9), regtest)
	if err != nil {
		t.Fatalf("DefaultDescriptors: %v", err)
	}
	s, err := Open(StoreConfig{
		Name:        "test",
		Params:      regtest,
		Descriptors: descs,
		Backend:     backend,
		Node:        chainoracle.NewMemory(regtest),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for i := 0; i < 2; i++ {
		if _, err := s.GetAddress(); !errors.Is(err, persist.ErrWrite) {
			t.Fatalf("GetAddress #%d error = %v, want ErrWrite", i, err)
		}
	}
	if _, err := file.Load(); !errors.Is(err, persist.ErrNoSnapshot) {
		t.Fatalf("snapshot written while commits fail: %v", err)
	}

	backend.fail = false
	addr, err := s.GetAddress()
	if err != nil {
		t.Fatalf("GetAddress after recovery: %v", err)
	}
	want, err := s.addressAt(types.External, 0)
	if err != nil {
		t.Fatal(err)
	}
	if addr.String() != want.String() {
		t.Errorf("GetAddress = %s, want index 0 address %s", addr, want)
	}
	if _, err := file.Load(); err != nil {
		t.Errorf("no snapshot after recovered commit: %v", err)
	}
}

func TestStore_OpenHardenedDescriptor(t *testing.T) {
	key, err := hdkeychain.NewMaster(testSeed(3), regtest)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := key.Neuter()
	if err != nil {
		t.Fatal(err)
	}
	backend, err := persist.NewFileBackend(t.TempDir(), "test")
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	_, err = Open(StoreConfig{
		Name:   "test",
		Params: regtest,
		Descriptors: map[types.Keychain]string{
			types.External: "wpkh(" + pub.String() + "/0/*')",
		},
		Backend: backend,
		Node:    chainoracle.NewMemory(regtest),
	})
	if !errors.Is(err, keychain.ErrHardenedDerivation) {
		t.Errorf("Open error = %v, want ErrHardenedDerivation", err)
	}
}
