// Package keychain maps keychains to descriptors and tracks how far each
// keychain's addresses have been revealed.
package keychain

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/Klingon-tech/klingwallet/internal/changeset"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/pkg/descriptor"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Registration errors. The descriptor errors are re-exported so callers
// only need this package.
var (
	ErrUnknownKeychain  = errors.New("keychain not registered")
	ErrKeychainExists   = errors.New("keychain already registered with another descriptor")
	ErrDescriptorReused = errors.New("descriptor already registered under another keychain")
	ErrIndexExhausted   = errors.New("keychain has no unrevealed index left")

	ErrHardenedDerivation  = descriptor.ErrHardenedDerivation
	ErrMultiPathDescriptor = descriptor.ErrMultiPathDescriptor
	ErrDescriptorSanity    = descriptor.ErrDescriptorSanity
)

// maxIndex is the last non-hardened child index.
const maxIndex = hdkeychain.HardenedKeyStart - 1

type position struct {
	keychain types.Keychain
	index    uint32
}

// Index derives scripts for registered keychains and remembers every
// revealed script. It is not safe for concurrent use.
type Index struct {
	params      *chaincfg.Params
	descriptors map[types.Keychain]*descriptor.Descriptor
	// cursors holds the last revealed index per keychain, including
	// cursors loaded for keychains not registered yet.
	cursors  map[types.Keychain]uint32
	revealed map[types.Keychain][][]byte
	lookup   map[string]position
}

// New creates an empty index for a network.
func New(params *chaincfg.Params) *Index {
	return &Index{
		params:      params,
		descriptors: make(map[types.Keychain]*descriptor.Descriptor),
		cursors:     make(map[types.Keychain]uint32),
		revealed:    make(map[types.Keychain][][]byte),
		lookup:      make(map[string]position),
	}
}

// Register binds a descriptor to a keychain. Registering the same
// descriptor twice is a no-op. A cursor loaded earlier for the keychain
// takes effect now. The returned changeset is always empty.
func (x *Index) Register(k types.Keychain, d *descriptor.Descriptor) (*changeset.ChangeSet, error) {
	if d.HasHardenedDerivation() {
		return nil, fmt.Errorf("register %s: %w", k, ErrHardenedDerivation)
	}
	if d.IsMultipath() {
		return nil, fmt.Errorf("register %s: %w", k, ErrMultiPathDescriptor)
	}
	if err := d.SanityCheck(x.params); err != nil {
		return nil, fmt.Errorf("register %s: %w", k, err)
	}

	id := d.String()
	if cur, ok := x.descriptors[k]; ok {
		if cur.String() == id {
			return changeset.New(), nil
		}
		return nil, fmt.Errorf("register %s: %w", k, ErrKeychainExists)
	}
	for other, od := range x.descriptors {
		if od.String() == id {
			return nil, fmt.Errorf("register %s: %w (%s)", k, ErrDescriptorReused, other)
		}
	}

	x.descriptors[k] = d
	if cursor, ok := x.cursors[k]; ok {
		if !d.IsRange() {
			cursor = 0
			x.cursors[k] = 0
		}
		if err := x.deriveThrough(k, cursor); err != nil {
			delete(x.descriptors, k)
			return nil, fmt.Errorf("register %s: %w", k, err)
		}
	}
	klog.Keychain.Debug().Str("keychain", k.String()).Str("descriptor", id).Msg("registered")
	return changeset.New(), nil
}

// RevealNext reveals the next index of a keychain: 0 when nothing was
// revealed yet, otherwise the last revealed index plus one. Unranged
// descriptors only ever reveal index 0.
func (x *Index) RevealNext(k types.Keychain) (uint32, []byte, *changeset.ChangeSet, error) {
	d, ok := x.descriptors[k]
	if !ok {
		return 0, nil, nil, fmt.Errorf("reveal %s: %w", k, ErrUnknownKeychain)
	}

	next := uint32(0)
	if cur, ok := x.cursors[k]; ok && d.IsRange() {
		if cur >= maxIndex {
			return 0, nil, nil, fmt.Errorf("reveal %s: %w", k, ErrIndexExhausted)
		}
		next = cur + 1
	}

	cs, err := x.RevealTo(k, next)
	if err != nil {
		return 0, nil, nil, err
	}
	return next, x.revealed[k][next], cs, nil
}

// RevealTo reveals every index up to and including index. The changeset
// is empty when index was already revealed. Unranged descriptors only
// have index 0.
func (x *Index) RevealTo(k types.Keychain, index uint32) (*changeset.ChangeSet, error) {
	d, ok := x.descriptors[k]
	if !ok {
		return nil, fmt.Errorf("reveal %s: %w", k, ErrUnknownKeychain)
	}
	if !d.IsRange() {
		index = 0
	}
	if index > maxIndex {
		return nil, fmt.Errorf("reveal %s/%d: %w", k, index, ErrIndexExhausted)
	}
	cs := changeset.New()
	if cur, ok := x.cursors[k]; ok && cur >= index {
		return cs, nil
	}
	if err := x.deriveThrough(k, index); err != nil {
		return nil, fmt.Errorf("reveal %s/%d: %w", k, index, err)
	}
	x.cursors[k] = index
	cs.SetRevealed(k, index)
	klog.Keychain.Debug().Str("keychain", k.String()).Uint32("index", index).Msg("revealed")
	return cs, nil
}

// deriveThrough derives and indexes the scripts of k up to index. Nothing
// is indexed unless every script derives.
func (x *Index) deriveThrough(k types.Keychain, index uint32) error {
	if index > maxIndex {
		return ErrIndexExhausted
	}
	d := x.descriptors[k]
	have := x.revealed[k]
	var derived [][]byte
	for i := uint32(len(have)); i <= index; i++ {
		script, err := d.ScriptAt(i)
		if err != nil {
			return err
		}
		derived = append(derived, script)
	}
	for j, script := range derived {
		if _, taken := x.lookup[string(script)]; !taken {
			x.lookup[string(script)] = position{keychain: k, index: uint32(len(have) + j)}
		}
	}
	x.revealed[k] = append(have, derived...)
	return nil
}

// ScriptAt derives the script at index without revealing it. Returns
// false when the keychain is not registered or derivation fails.
func (x *Index) ScriptAt(k types.Keychain, index uint32) ([]byte, bool) {
	d, ok := x.descriptors[k]
	if !ok {
		return nil, false
	}
	script, err := d.ScriptAt(index)
	if err != nil {
		return nil, false
	}
	return script, true
}

// LastRevealed returns the reveal cursor of a keychain. The cursor is in
// memory only and may be ahead of the last committed snapshot.
func (x *Index) LastRevealed(k types.Keychain) (uint32, bool) {
	idx, ok := x.cursors[k]
	return idx, ok
}

// Lookup finds the keychain and index that produced a revealed script.
func (x *Index) Lookup(script []byte) (types.Keychain, uint32, bool) {
	p, ok := x.lookup[string(script)]
	return p.keychain, p.index, ok
}

// IsMine reports whether script is a revealed script of any keychain.
func (x *Index) IsMine(script []byte) bool {
	_, ok := x.lookup[string(script)]
	return ok
}

// Keychains returns the registered keychains in order.
func (x *Index) Keychains() []types.Keychain {
	ks := slices.Collect(maps.Keys(x.descriptors))
	types.SortKeychains(ks)
	return ks
}

// Descriptor returns the descriptor registered for k.
func (x *Index) Descriptor(k types.Keychain) (*descriptor.Descriptor, bool) {
	d, ok := x.descriptors[k]
	return d, ok
}

// RevealedScripts yields the revealed scripts of k in index order.
func (x *Index) RevealedScripts(k types.Keychain) iter.Seq2[uint32, []byte] {
	return func(yield func(uint32, []byte) bool) {
		for i, s := range x.revealed[k] {
			if !yield(uint32(i), s) {
				return
			}
		}
	}
}

// ApplyChangeSet raises cursors to the values in cs. Cursors for
// unregistered keychains are retained until registration.
func (x *Index) ApplyChangeSet(cs *changeset.ChangeSet) error {
	if cs == nil {
		return nil
	}
	for _, k := range slices.SortedFunc(maps.Keys(cs.LastRevealed), types.Keychain.Compare) {
		idx := cs.LastRevealed[k]
		if _, ok := x.descriptors[k]; !ok {
			if cur, ok := x.cursors[k]; !ok || idx > cur {
				x.cursors[k] = idx
			}
			continue
		}
		if _, err := x.RevealTo(k, idx); err != nil {
			return err
		}
	}
	return nil
}

// InitialChangeSet returns a changeset that recreates every cursor,
// including retained ones.
func (x *Index) InitialChangeSet() *changeset.ChangeSet {
	cs := changeset.New()
	for k, idx := range x.cursors {
		cs.SetRevealed(k, idx)
	}
	return cs
}
