package descriptor

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

var regtest = &chaincfg.RegressionNetParams

// testMaster returns a deterministic regtest master key.
func testMaster(t *testing.T) *hdkeychain.ExtendedKey {
	t.Helper()
	master, err := hdkeychain.NewMaster(bytes.Repeat([]byte{0x2a}, 32), regtest)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	return master
}

func derivePath(t *testing.T, k *hdkeychain.ExtendedKey, path ...uint32) *hdkeychain.ExtendedKey {
	t.Helper()
	for _, step := range path {
		var err error
		k, err = k.Derive(step)
		if err != nil {
			t.Fatalf("Derive(%d): %v", step, err)
		}
	}
	return k
}

func accountXpub(t *testing.T) string {
	t.Helper()
	acct := derivePath(t, testMaster(t), 84+hardened, 1+hardened, 0+hardened)
	pub, err := acct.Neuter()
	if err != nil {
		t.Fatalf("Neuter: %v", err)
	}
	return pub.String()
}

func TestParse_PrivateRanged(t *testing.T) {
	master := testMaster(t)
	d, err := Parse("wpkh(" + master.String() + "/84'/1'/0'/0/*)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Type != Wpkh {
		t.Errorf("Type = %s, want wpkh", d.Type)
	}
	if !d.IsRange() || !d.HasPrivateKey() {
		t.Error("descriptor should be ranged and private")
	}
	if d.HasHardenedDerivation() {
		t.Error("hardened steps below a private key are derivable")
	}
	if d.IsMultipath() {
		t.Error("descriptor is not multipath")
	}
	if err := d.SanityCheck(regtest); err != nil {
		t.Errorf("SanityCheck: %v", err)
	}

	for i := uint32(0); i < 3; i++ {
		got, err := d.ScriptAt(i)
		if err != nil {
			t.Fatalf("ScriptAt(%d): %v", i, err)
		}
		pub, _ := derivePath(t, master, 84+hardened, 1+hardened, hardened, 0, i).ECPubKey()
		addr, _ := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), regtest)
		want, _ := txscript.PayToAddrScript(addr)
		if !bytes.Equal(got, want) {
			t.Errorf("ScriptAt(%d) = %x, want %x", i, got, want)
		}
	}
}

func TestString_PublicFormMatchesPrivate(t *testing.T) {
	master := testMaster(t)
	priv := MustParse("wpkh(" + master.String() + "/84'/1'/0'/1/*)")
	pub, err := Parse(priv.String())
	if err != nil {
		t.Fatalf("Parse(public form %q): %v", priv.String(), err)
	}
	if pub.HasPrivateKey() {
		t.Error("public form should not carry private keys")
	}
	if pub.HasHardenedDerivation() {
		t.Error("public form should have the hardened prefix folded into the origin")
	}
	if err := pub.SanityCheck(regtest); err != nil {
		t.Errorf("public form should carry a valid checksum: %v", err)
	}

	for i := uint32(0); i < 5; i++ {
		a, _ := priv.ScriptAt(i)
		b, err := pub.ScriptAt(i)
		if err != nil {
			t.Fatalf("public ScriptAt(%d): %v", i, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("index %d: public and private scripts differ", i)
		}
		fpA, pathA := priv.DerivationAt(i)
		fpB, pathB := pub.DerivationAt(i)
		if fpA != fpB || !slices.Equal(pathA, pathB) {
			t.Errorf("index %d: derivation %x%v vs %x%v", i, fpA, pathA, fpB, pathB)
		}
	}
}

func TestDerivationAt(t *testing.T) {
	master := testMaster(t)
	d := MustParse("wpkh(" + master.String() + "/84'/1'/0'/0/*)")

	fp, path := d.DerivationAt(7)
	pub, _ := master.ECPubKey()
	if !bytes.Equal(fp[:], btcutil.Hash160(pub.SerializeCompressed())[:4]) {
		t.Errorf("fingerprint = %x, want master fingerprint", fp)
	}
	want := []uint32{84 + hardened, 1 + hardened, hardened, 0, 7}
	if !slices.Equal(path, want) {
		t.Errorf("path = %s, want %s", FormatPath(path), FormatPath(want))
	}
}

func TestPrivateString_RoundTrip(t *testing.T) {
	master := testMaster(t)
	d := MustParse("tr(" + master.String() + "/86h/1h/0h/0/*)")
	again, err := Parse(d.PrivateString())
	if err != nil {
		t.Fatalf("Parse(PrivateString): %v", err)
	}
	if !again.HasPrivateKey() {
		t.Error("private string should keep the private key")
	}
	if again.PrivateString() != d.PrivateString() {
		t.Error("PrivateString should be stable")
	}
	if err := again.SanityCheck(regtest); err != nil {
		t.Errorf("SanityCheck: %v", err)
	}
}

func TestHardenedDerivation(t *testing.T) {
	master := testMaster(t)
	xpub := accountXpub(t)

	tests := []struct {
		name string
		desc string
		want bool
	}{
		{"private hardened steps", "wpkh(" + master.String() + "/84'/1'/0'/0/*)", false},
		{"public unhardened", "wpkh(" + xpub + "/0/*)", false},
		{"hardened wildcard", "wpkh(" + master.String() + "/0/*')", true},
		{"hardened wildcard h", "wpkh(" + xpub + "/0/*h)", true},
		{"hardened step on xpub", "wpkh(" + xpub + "/0'/*)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.desc)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := d.HasHardenedDerivation(); got != tt.want {
				t.Errorf("HasHardenedDerivation = %v, want %v", got, tt.want)
			}
		})
	}

	d := MustParse("wpkh(" + xpub + "/0'/*)")
	if _, err := d.ScriptAt(0); !errors.Is(err, ErrHardenedDerivation) {
		t.Errorf("ScriptAt error = %v, want ErrHardenedDerivation", err)
	}
}

func TestMultipath(t *testing.T) {
	xpub := accountXpub(t)
	d, err := Parse("wpkh(" + xpub + "/<0;1>/*)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !d.IsMultipath() {
		t.Fatal("descriptor should be multipath")
	}
	if _, err := d.ScriptAt(0); !errors.Is(err, ErrMultiPathDescriptor) {
		t.Errorf("ScriptAt error = %v, want ErrMultiPathDescriptor", err)
	}

	parts := d.Split()
	if len(parts) != 2 {
		t.Fatalf("Split returned %d descriptors, want 2", len(parts))
	}
	for branch, part := range parts {
		single := MustParse("wpkh(" + xpub + "/" + []string{"0", "1"}[branch] + "/*)")
		a, err := part.ScriptAt(3)
		if err != nil {
			t.Fatalf("split ScriptAt: %v", err)
		}
		b, _ := single.ScriptAt(3)
		if !bytes.Equal(a, b) {
			t.Errorf("branch %d: split script differs from single-path script", branch)
		}
	}
	if d.Split()[0].IsMultipath() {
		t.Error("split descriptors should be single-path")
	}
}

func TestSanityCheck_Checksum(t *testing.T) {
	xpub := accountXpub(t)
	withSum, err := AddChecksum("wpkh(" + xpub + "/0/*)")
	if err != nil {
		t.Fatalf("AddChecksum: %v", err)
	}
	if err := MustParse(withSum).SanityCheck(regtest); err != nil {
		t.Errorf("valid checksum rejected: %v", err)
	}

	bad := withSum[:len(withSum)-1] + "q"
	if bad == withSum {
		bad = withSum[:len(withSum)-1] + "p"
	}
	if err := MustParse(bad).SanityCheck(regtest); !errors.Is(err, ErrDescriptorSanity) {
		t.Errorf("SanityCheck error = %v, want ErrDescriptorSanity", err)
	}
}

func TestSanityCheck_Network(t *testing.T) {
	d := MustParse("wpkh(" + accountXpub(t) + "/0/*)")
	if err := d.SanityCheck(&chaincfg.MainNetParams); !errors.Is(err, ErrDescriptorSanity) {
		t.Errorf("SanityCheck(mainnet) error = %v, want ErrDescriptorSanity", err)
	}
	if err := d.SanityCheck(&chaincfg.TestNet3Params); err != nil {
		t.Errorf("tpub should be valid on testnet: %v", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	xpub := accountXpub(t)
	tests := []string{
		"",
		"wpkh()",
		"wsh(" + xpub + "/0/*)",
		"sh(pkh(" + xpub + "/0/*))",
		"wpkh(" + xpub + "/x/*)",
		"wpkh(" + xpub + "/*/0)",
		"wpkh(" + xpub + "/<0>/*)",
		"wpkh(" + xpub + "/<0;1>/<2;3>/*)",
		"tr(" + xpub + "/0/*,pk(" + xpub + "))",
		"wpkh([zz]" + xpub + "/0/*)",
		"wpkh([00000000" + xpub + "/0/*)",
		"wpkh(notakey)",
		"wpkh(0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798/0)",
	}
	for _, s := range tests {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidDescriptor", s, err)
		}
	}
}

func TestSingleKey(t *testing.T) {
	const pubHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	d := MustParse("wpkh(" + pubHex + ")")
	if d.IsRange() || d.HasPrivateKey() {
		t.Error("hex key descriptor should be unranged and watch-only")
	}
	a, _ := d.ScriptAt(0)
	b, _ := d.ScriptAt(9)
	if !bytes.Equal(a, b) {
		t.Error("unranged descriptor should derive the same script at every index")
	}
	if _, err := d.PrivKeyAt(0); !errors.Is(err, ErrNoPrivateKey) {
		t.Errorf("PrivKeyAt error = %v, want ErrNoPrivateKey", err)
	}
	if d.String() != MustParse(d.String()).String() {
		t.Error("public form should be stable")
	}
}

func TestSingleKey_XOnly(t *testing.T) {
	const xonly = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	d := MustParse("tr(" + xonly + ")")
	if _, err := d.ScriptAt(0); err != nil {
		t.Fatalf("ScriptAt: %v", err)
	}
	if _, err := Parse("wpkh(" + xonly + ")"); !errors.Is(err, ErrInvalidDescriptor) {
		t.Error("x-only keys are only valid in tr()")
	}
	again := MustParse(d.String())
	a, _ := d.ScriptAt(0)
	b, _ := again.ScriptAt(0)
	if !bytes.Equal(a, b) {
		t.Error("x-only public form should derive the same script")
	}
}

func TestPrivKeyAt(t *testing.T) {
	d := MustParse("sh(wpkh(" + testMaster(t).String() + "/49'/1'/0'/0/*))")
	for i := uint32(0); i < 3; i++ {
		priv, err := d.PrivKeyAt(i)
		if err != nil {
			t.Fatalf("PrivKeyAt(%d): %v", i, err)
		}
		pub, _ := d.PubKeyAt(i)
		if !priv.PubKey().IsEqual(pub) {
			t.Errorf("index %d: private key does not match public key", i)
		}
	}
}

func TestAddressAt_MatchesScript(t *testing.T) {
	master := testMaster(t).String()
	for _, desc := range []string{
		"wpkh(" + master + "/84'/1'/0'/0/*)",
		"pkh(" + master + "/44'/1'/0'/0/*)",
		"sh(wpkh(" + master + "/49'/1'/0'/0/*))",
		"tr(" + master + "/86'/1'/0'/0/*)",
	} {
		d := MustParse(desc)
		for i := uint32(0); i < 2; i++ {
			addr, err := d.AddressAt(i, regtest)
			if err != nil {
				t.Fatalf("%s: AddressAt(%d): %v", d.Type, i, err)
			}
			want, _ := txscript.PayToAddrScript(addr)
			got, _ := d.ScriptAt(i)
			if !bytes.Equal(got, want) {
				t.Errorf("%s index %d: script %x, address script %x", d.Type, i, got, want)
			}
		}
	}
}
