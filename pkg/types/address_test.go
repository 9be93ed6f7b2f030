package types

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

func TestNetParams(t *testing.T) {
	tests := map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"regtest": &chaincfg.RegressionNetParams,
		"signet":  &chaincfg.SigNetParams,
	}
	for name, want := range tests {
		got, err := NetParams(name)
		if err != nil {
			t.Fatalf("NetParams(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("NetParams(%q) = %s, want %s", name, got.Name, want.Name)
		}
	}
	if _, err := NetParams("litecoin"); err == nil {
		t.Error("NetParams should reject unknown networks")
	}
}

func TestDecodeAddress(t *testing.T) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("NewAddressWitnessPubKeyHash: %v", err)
	}

	got, err := DecodeAddress(addr.EncodeAddress(), &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if got.EncodeAddress() != addr.EncodeAddress() {
		t.Errorf("DecodeAddress = %s, want %s", got, addr)
	}

	_, err = DecodeAddress(addr.EncodeAddress(), &chaincfg.MainNetParams)
	if !errors.Is(err, ErrWrongNetwork) {
		t.Errorf("DecodeAddress on mainnet error = %v, want ErrWrongNetwork", err)
	}
}

func TestScriptAddress(t *testing.T) {
	addr, _ := btcutil.NewAddressWitnessPubKeyHash(make([]byte, 20), &chaincfg.RegressionNetParams)
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		t.Fatalf("PayToAddrScript: %v", err)
	}
	got := ScriptAddress(pkScript, &chaincfg.RegressionNetParams)
	if got == nil || got.EncodeAddress() != addr.EncodeAddress() {
		t.Errorf("ScriptAddress = %v, want %s", got, addr)
	}
	if !IsSegwit(pkScript) {
		t.Error("p2wpkh script should be segwit")
	}
	if ScriptAddress(addr.ScriptAddress(), &chaincfg.RegressionNetParams) != nil {
		t.Error("raw hash is not a script and should not decode")
	}
}
