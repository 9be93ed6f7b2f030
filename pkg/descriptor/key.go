package descriptor

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

const hardened = hdkeychain.HardenedKeyStart

// Wildcard describes the trailing "*" of a ranged key.
type Wildcard uint8

const (
	WildcardNone Wildcard = iota
	WildcardUnhardened
	WildcardHardened
)

// Origin is the "[fingerprint/path]" prefix of a key expression.
type Origin struct {
	Fingerprint [4]byte
	Path        []uint32
}

func (o *Origin) String() string {
	if o == nil {
		return ""
	}
	return "[" + hex.EncodeToString(o.Fingerprint[:]) + formatPath(o.Path) + "]"
}

// multipath records a "<a;b;...>" step.
type multipath struct {
	pos  int
	alts []uint32
}

// keyExpr is a single key expression: an extended key with a derivation
// path, a hex public key or a WIF private key.
type keyExpr struct {
	origin   *Origin
	xkey     *hdkeychain.ExtendedKey
	pub      *btcec.PublicKey
	xonly    bool
	wif      *btcutil.WIF
	path     []uint32
	wildcard Wildcard
	multi    *multipath

	// split is the number of leading path steps up to and including the
	// last hardened one.
	split int
	// branch is xkey derived through every fixed step; nil when the path
	// needs hardened derivation that xkey cannot do.
	branch *hdkeychain.ExtendedKey
}

func parseKey(s string, xonlyOK bool) (*keyExpr, error) {
	k := &keyExpr{}
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated key origin", ErrInvalidDescriptor)
		}
		origin, err := parseOrigin(s[1:end])
		if err != nil {
			return nil, err
		}
		k.origin = origin
		s = s[end+1:]
	}

	parts := strings.Split(s, "/")
	keyStr, steps := parts[0], parts[1:]
	if err := k.decodeKey(keyStr, xonlyOK); err != nil {
		return nil, err
	}
	if k.xkey == nil && len(steps) > 0 {
		return nil, fmt.Errorf("%w: derivation steps on a non-extended key", ErrInvalidDescriptor)
	}

	for i, step := range steps {
		last := i == len(steps)-1
		switch {
		case last && step == "*":
			k.wildcard = WildcardUnhardened
			continue
		case last && (step == "*'" || step == "*h" || step == "*H"):
			k.wildcard = WildcardHardened
			continue
		case strings.HasPrefix(step, "<") && strings.HasSuffix(step, ">"):
			if k.multi != nil {
				return nil, fmt.Errorf("%w: more than one multipath step", ErrInvalidDescriptor)
			}
			alts := strings.Split(step[1:len(step)-1], ";")
			if len(alts) < 2 {
				return nil, fmt.Errorf("%w: multipath step %q needs two or more values", ErrInvalidDescriptor, step)
			}
			m := &multipath{pos: len(k.path)}
			for _, a := range alts {
				v, err := parseStep(a)
				if err != nil {
					return nil, err
				}
				m.alts = append(m.alts, v)
			}
			k.multi = m
			k.path = append(k.path, m.alts[0])
			continue
		}
		v, err := parseStep(step)
		if err != nil {
			return nil, err
		}
		k.path = append(k.path, v)
	}
	k.prepare()
	return k, nil
}

func (k *keyExpr) decodeKey(s string, xonlyOK bool) error {
	if s == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidDescriptor)
	}
	if b, err := hex.DecodeString(s); err == nil {
		switch {
		case len(b) == 33:
			pub, err := btcec.ParsePubKey(b)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
			}
			k.pub = pub
			return nil
		case len(b) == 32 && xonlyOK:
			pub, err := schnorr.ParsePubKey(b)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
			}
			k.pub = pub
			k.xonly = true
			return nil
		default:
			return fmt.Errorf("%w: unsupported public key length %d", ErrInvalidDescriptor, len(b))
		}
	}
	if xkey, err := hdkeychain.NewKeyFromString(s); err == nil {
		k.xkey = xkey
		return nil
	}
	wif, err := btcutil.DecodeWIF(s)
	if err != nil {
		return fmt.Errorf("%w: cannot decode key %q", ErrInvalidDescriptor, abbreviate(s))
	}
	if !wif.CompressPubKey {
		return fmt.Errorf("%w: uncompressed keys are not supported", ErrInvalidDescriptor)
	}
	k.wif = wif
	k.pub = wif.PrivKey.PubKey()
	return nil
}

// prepare derives the fixed part of the path once.
func (k *keyExpr) prepare() {
	if k.xkey == nil {
		return
	}
	for i, step := range k.path {
		if step >= hardened {
			k.split = i + 1
		}
	}
	if k.multi != nil {
		return
	}
	branch := k.xkey
	for _, step := range k.path {
		child, err := branch.Derive(step)
		if err != nil {
			return
		}
		branch = child
	}
	k.branch = branch
}

func (k *keyExpr) isPrivate() bool {
	return k.wif != nil || (k.xkey != nil && k.xkey.IsPrivate())
}

// needsHardenedPublic reports whether derivation needs a hardened step
// that only a private key could perform.
func (k *keyExpr) needsHardenedPublic() bool {
	if k.wildcard == WildcardHardened {
		return true
	}
	return k.split > 0 && !k.isPrivate()
}

func (k *keyExpr) isForNet(params *chaincfg.Params) bool {
	switch {
	case k.xkey != nil:
		return k.xkey.IsForNet(params)
	case k.wif != nil:
		return k.wif.IsForNet(params)
	default:
		return true
	}
}

// child returns the extended key at index, private when possible.
func (k *keyExpr) child(index uint32) (*hdkeychain.ExtendedKey, error) {
	if k.multi != nil {
		return nil, ErrMultiPathDescriptor
	}
	if k.branch == nil {
		return nil, ErrHardenedDerivation
	}
	switch k.wildcard {
	case WildcardNone:
		return k.branch, nil
	case WildcardHardened:
		if !k.branch.IsPrivate() {
			return nil, ErrHardenedDerivation
		}
		if index >= hardened {
			return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidDescriptor, index)
		}
		return k.branch.Derive(index + hardened)
	}
	if index >= hardened {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidDescriptor, index)
	}
	return k.branch.Derive(index)
}

func (k *keyExpr) pubKeyAt(index uint32) (*btcec.PublicKey, error) {
	if k.xkey == nil {
		return k.pub, nil
	}
	c, err := k.child(index)
	if err != nil {
		return nil, err
	}
	return c.ECPubKey()
}

func (k *keyExpr) privKeyAt(index uint32) (*btcec.PrivateKey, error) {
	if !k.isPrivate() {
		return nil, ErrNoPrivateKey
	}
	if k.wif != nil {
		return k.wif.PrivKey, nil
	}
	c, err := k.child(index)
	if err != nil {
		return nil, err
	}
	return c.ECPrivKey()
}

// fingerprint returns the fingerprint that roots the full derivation path.
func (k *keyExpr) fingerprint() [4]byte {
	if k.origin != nil {
		return k.origin.Fingerprint
	}
	var pub *btcec.PublicKey
	if k.xkey != nil {
		pub, _ = k.xkey.ECPubKey()
	} else {
		pub = k.pub
	}
	var fp [4]byte
	if pub != nil {
		copy(fp[:], btcutil.Hash160(pub.SerializeCompressed())[:4])
	}
	return fp
}

// fullPath returns the derivation path from the fingerprint key to index.
func (k *keyExpr) fullPath(index uint32) []uint32 {
	var path []uint32
	if k.origin != nil {
		path = append(path, k.origin.Path...)
	}
	path = append(path, k.path...)
	switch k.wildcard {
	case WildcardUnhardened:
		path = append(path, index)
	case WildcardHardened:
		path = append(path, index+hardened)
	}
	return path
}

// text formats the key expression. With public set, private keys are
// replaced by their public counterpart and a hardened prefix is folded
// into the origin.
func (k *keyExpr) text(public bool) string {
	origin, path := k.origin, k.path
	var key string

	switch {
	case k.xkey == nil && k.xonly:
		key = hex.EncodeToString(schnorr.SerializePubKey(k.pub))
	case k.xkey == nil && (public || k.wif == nil):
		key = hex.EncodeToString(k.pub.SerializeCompressed())
	case k.xkey == nil:
		key = k.wif.String()
	case !public || !k.xkey.IsPrivate():
		key = k.xkey.String()
	case k.split > 0 && (k.multi == nil || k.multi.pos >= k.split):
		base := k.xkey
		for _, step := range k.path[:k.split] {
			base, _ = base.Derive(step)
		}
		neutered, _ := base.Neuter()
		key = neutered.String()
		origin = &Origin{Fingerprint: k.fingerprint(), Path: k.fullPath(0)[:k.originLen()+k.split]}
		path = k.path[k.split:]
	default:
		neutered, _ := k.xkey.Neuter()
		key = neutered.String()
	}

	var sb strings.Builder
	sb.WriteString(origin.String())
	sb.WriteString(key)
	for i, step := range path {
		sb.WriteByte('/')
		pos := i + len(k.path) - len(path)
		if k.multi != nil && pos == k.multi.pos {
			sb.WriteByte('<')
			for j, alt := range k.multi.alts {
				if j > 0 {
					sb.WriteByte(';')
				}
				sb.WriteString(formatStep(alt))
			}
			sb.WriteByte('>')
			continue
		}
		sb.WriteString(formatStep(step))
	}
	switch k.wildcard {
	case WildcardUnhardened:
		sb.WriteString("/*")
	case WildcardHardened:
		sb.WriteString("/*'")
	}
	return sb.String()
}

func (k *keyExpr) originLen() int {
	if k.origin == nil {
		return 0
	}
	return len(k.origin.Path)
}

// withStep returns a copy of a multipath key with the multipath step
// replaced by alt.
func (k *keyExpr) withStep(alt uint32) *keyExpr {
	c := *k
	c.path = append([]uint32(nil), k.path...)
	c.path[k.multi.pos] = alt
	c.multi = nil
	c.split = 0
	c.branch = nil
	c.prepare()
	return &c
}

func parseOrigin(s string) (*Origin, error) {
	parts := strings.Split(s, "/")
	fp, err := hex.DecodeString(parts[0])
	if err != nil || len(fp) != 4 {
		return nil, fmt.Errorf("%w: bad origin fingerprint %q", ErrInvalidDescriptor, parts[0])
	}
	o := &Origin{}
	copy(o.Fingerprint[:], fp)
	for _, p := range parts[1:] {
		v, err := parseStep(p)
		if err != nil {
			return nil, err
		}
		o.Path = append(o.Path, v)
	}
	return o, nil
}

func parseStep(s string) (uint32, error) {
	var h uint32
	if n := len(s); n > 0 && (s[n-1] == '\'' || s[n-1] == 'h' || s[n-1] == 'H') {
		h = hardened
		s = s[:n-1]
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v >= hardened {
		return 0, fmt.Errorf("%w: bad derivation step %q", ErrInvalidDescriptor, s)
	}
	return uint32(v) + h, nil
}

func formatStep(v uint32) string {
	if v >= hardened {
		return strconv.FormatUint(uint64(v-hardened), 10) + "'"
	}
	return strconv.FormatUint(uint64(v), 10)
}

func formatPath(path []uint32) string {
	var sb strings.Builder
	for _, v := range path {
		sb.WriteByte('/')
		sb.WriteString(formatStep(v))
	}
	return sb.String()
}

// FormatPath renders a BIP-32 path as "m/84'/1'/0'".
func FormatPath(path []uint32) string {
	return "m" + formatPath(path)
}

// FingerprintUint32 converts a fingerprint to the integer form used by
// PSBT derivation records.
func FingerprintUint32(fp [4]byte) uint32 {
	return binary.LittleEndian.Uint32(fp[:])
}

func abbreviate(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:8] + "..."
}
