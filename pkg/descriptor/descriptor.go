// Package descriptor parses single-key output script descriptors
// (wpkh, pkh, sh(wpkh), tr) and derives their scripts and keys.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptType is the script template of a descriptor.
type ScriptType uint8

const (
	Wpkh ScriptType = iota + 1
	Pkh
	ShWpkh
	Tr
)

func (t ScriptType) String() string {
	switch t {
	case Wpkh:
		return "wpkh"
	case Pkh:
		return "pkh"
	case ShWpkh:
		return "sh(wpkh)"
	case Tr:
		return "tr"
	default:
		return "unknown"
	}
}

// Descriptor is a parsed output descriptor.
type Descriptor struct {
	Type ScriptType

	key   *keyExpr
	sumOK bool
}

// Parse parses a descriptor with an optional "#checksum" suffix. Syntax
// errors return ErrInvalidDescriptor. A wrong checksum, hardened public
// derivation and multipath steps are not parse errors; they are reported
// by SanityCheck, HasHardenedDerivation and IsMultipath.
func Parse(s string) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	body, sum, hasSum := strings.Cut(s, "#")

	typ, inner, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	key, err := parseKey(inner, typ == Tr)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{Type: typ, key: key, sumOK: true}
	if hasSum {
		want, err := Checksum(body)
		if err != nil {
			return nil, err
		}
		d.sumOK = sum == want
	}
	return d, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant descriptors.
func MustParse(s string) *Descriptor {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func unwrap(body string) (ScriptType, string, error) {
	wrappers := []struct {
		typ    ScriptType
		prefix string
		suffix string
	}{
		{ShWpkh, "sh(wpkh(", "))"},
		{Wpkh, "wpkh(", ")"},
		{Pkh, "pkh(", ")"},
		{Tr, "tr(", ")"},
	}
	for _, w := range wrappers {
		if !strings.HasPrefix(body, w.prefix) || !strings.HasSuffix(body, w.suffix) {
			continue
		}
		inner := body[len(w.prefix) : len(body)-len(w.suffix)]
		if strings.ContainsAny(inner, "(),") {
			return 0, "", fmt.Errorf("%w: unsupported %s expression", ErrInvalidDescriptor, w.typ)
		}
		return w.typ, inner, nil
	}
	return 0, "", fmt.Errorf("%w: unsupported script template", ErrInvalidDescriptor)
}

// SanityCheck verifies the checksum (when present) and that the key
// belongs to the given network.
func (d *Descriptor) SanityCheck(params *chaincfg.Params) error {
	if !d.sumOK {
		return fmt.Errorf("%w: checksum mismatch", ErrDescriptorSanity)
	}
	if !d.key.isForNet(params) {
		return fmt.Errorf("%w: key is not for %s", ErrDescriptorSanity, params.Name)
	}
	return nil
}

// HasHardenedDerivation reports whether deriving scripts would need a
// hardened step the descriptor cannot perform publicly: a hardened
// wildcard, or a hardened path step below a public key. Hardened steps
// below a private key are derived once at parse time.
func (d *Descriptor) HasHardenedDerivation() bool {
	return d.key.needsHardenedPublic()
}

// IsMultipath reports whether the descriptor has a "<a;b>" step and so
// stands for more than one script family.
func (d *Descriptor) IsMultipath() bool {
	return d.key.multi != nil
}

// IsRange reports whether the descriptor has a wildcard.
func (d *Descriptor) IsRange() bool {
	return d.key.wildcard != WildcardNone
}

// HasPrivateKey reports whether the descriptor carries private key
// material.
func (d *Descriptor) HasPrivateKey() bool {
	return d.key.isPrivate()
}

// Split expands a multipath descriptor into one descriptor per
// alternative. A single-path descriptor is returned as is.
func (d *Descriptor) Split() []*Descriptor {
	if d.key.multi == nil {
		return []*Descriptor{d}
	}
	out := make([]*Descriptor, 0, len(d.key.multi.alts))
	for _, alt := range d.key.multi.alts {
		out = append(out, &Descriptor{Type: d.Type, key: d.key.withStep(alt), sumOK: true})
	}
	return out
}

// PubKeyAt derives the public key at index.
func (d *Descriptor) PubKeyAt(index uint32) (*btcec.PublicKey, error) {
	return d.key.pubKeyAt(index)
}

// PrivKeyAt derives the private key at index. Returns ErrNoPrivateKey for
// watch-only descriptors.
func (d *Descriptor) PrivKeyAt(index uint32) (*btcec.PrivateKey, error) {
	return d.key.privKeyAt(index)
}

// DerivationAt returns the key origin fingerprint and the full BIP-32
// path of the key at index.
func (d *Descriptor) DerivationAt(index uint32) ([4]byte, []uint32) {
	return d.key.fingerprint(), d.key.fullPath(index)
}

// ScriptAt derives the output script at index. Non-ranged descriptors
// return the same script for every index.
func (d *Descriptor) ScriptAt(index uint32) ([]byte, error) {
	pub, err := d.PubKeyAt(index)
	if err != nil {
		return nil, err
	}
	return d.scriptFor(pub)
}

// RedeemScriptAt returns the P2SH redeem script at index; nil for
// templates without one.
func (d *Descriptor) RedeemScriptAt(index uint32) ([]byte, error) {
	if d.Type != ShWpkh {
		return nil, nil
	}
	pub, err := d.PubKeyAt(index)
	if err != nil {
		return nil, err
	}
	return witnessV0Script(pub)
}

// AddressAt derives the address at index.
func (d *Descriptor) AddressAt(index uint32, params *chaincfg.Params) (btcutil.Address, error) {
	pub, err := d.PubKeyAt(index)
	if err != nil {
		return nil, err
	}
	hash := btcutil.Hash160(pub.SerializeCompressed())
	switch d.Type {
	case Wpkh:
		return btcutil.NewAddressWitnessPubKeyHash(hash, params)
	case Pkh:
		return btcutil.NewAddressPubKeyHash(hash, params)
	case ShWpkh:
		redeem, err := witnessV0Script(pub)
		if err != nil {
			return nil, err
		}
		return btcutil.NewAddressScriptHash(redeem, params)
	case Tr:
		return btcutil.NewAddressTaproot(schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(pub)), params)
	default:
		return nil, fmt.Errorf("%w: unknown script type", ErrInvalidDescriptor)
	}
}

func (d *Descriptor) scriptFor(pub *btcec.PublicKey) ([]byte, error) {
	switch d.Type {
	case Wpkh:
		return witnessV0Script(pub)
	case Pkh:
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_HASH160).
			AddData(btcutil.Hash160(pub.SerializeCompressed())).
			AddOp(txscript.OP_EQUALVERIFY).
			AddOp(txscript.OP_CHECKSIG).
			Script()
	case ShWpkh:
		redeem, err := witnessV0Script(pub)
		if err != nil {
			return nil, err
		}
		return txscript.NewScriptBuilder().
			AddOp(txscript.OP_HASH160).
			AddData(btcutil.Hash160(redeem)).
			AddOp(txscript.OP_EQUAL).
			Script()
	case Tr:
		return txscript.PayToTaprootScript(txscript.ComputeTaprootKeyNoScript(pub))
	default:
		return nil, fmt.Errorf("%w: unknown script type", ErrInvalidDescriptor)
	}
}

func witnessV0Script(pub *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(pub.SerializeCompressed())).
		Script()
}

// String returns the public form of the descriptor with a checksum.
// Private keys are replaced by public keys; a hardened prefix below a
// private key is folded into the key origin.
func (d *Descriptor) String() string {
	return d.format(true)
}

// PrivateString returns the descriptor with its private keys and a
// freshly computed checksum.
func (d *Descriptor) PrivateString() string {
	return d.format(false)
}

func (d *Descriptor) format(public bool) string {
	key := d.key.text(public)
	var body string
	switch d.Type {
	case ShWpkh:
		body = "sh(wpkh(" + key + "))"
	default:
		body = d.Type.String() + "(" + key + ")"
	}
	out, err := AddChecksum(body)
	if err != nil {
		return body
	}
	return out
}
