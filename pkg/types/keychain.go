// Package types defines primitive types shared across the wallet engine.
package types

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// KeychainTag discriminates the keychain variants.
type KeychainTag uint8

const (
	TagExternal KeychainTag = iota // Receiving addresses.
	TagInternal                    // Change addresses.
	TagLabeled                     // Named keychains (swap coins and friends).
)

// Labeled keychain kinds used by the swap-coin records.
const (
	KindIncomingSwapCoin = "incoming-swapcoin"
	KindOutgoingSwapCoin = "outgoing-swapcoin"
)

// ErrInvalidKeychain is returned when a keychain string cannot be parsed.
var ErrInvalidKeychain = errors.New("invalid keychain")

// Keychain identifies a group of addresses sharing one descriptor and one
// reveal cursor. It is comparable and can be used as a map key.
//
// Ordering is by tag first (External < Internal < Labeled), then by kind,
// then by id.
type Keychain struct {
	Tag  KeychainTag `cbor:"1,keyasint"`
	Kind string      `cbor:"2,keyasint,omitempty"`
	ID   string      `cbor:"3,keyasint,omitempty"`
}

var (
	// External is the receiving keychain.
	External = Keychain{Tag: TagExternal}

	// Internal is the change keychain.
	Internal = Keychain{Tag: TagInternal}
)

// Labeled returns a named keychain.
func Labeled(kind, id string) Keychain {
	return Keychain{Tag: TagLabeled, Kind: kind, ID: id}
}

// IncomingSwapCoin returns the keychain for an incoming swap coin.
func IncomingSwapCoin(id string) Keychain {
	return Labeled(KindIncomingSwapCoin, id)
}

// OutgoingSwapCoin returns the keychain for an outgoing swap coin.
func OutgoingSwapCoin(id string) Keychain {
	return Labeled(KindOutgoingSwapCoin, id)
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to
// or after o.
func (k Keychain) Compare(o Keychain) int {
	if c := cmp.Compare(k.Tag, o.Tag); c != 0 {
		return c
	}
	if c := strings.Compare(k.Kind, o.Kind); c != 0 {
		return c
	}
	return strings.Compare(k.ID, o.ID)
}

// Less reports whether k sorts before o.
func (k Keychain) Less(o Keychain) bool {
	return k.Compare(o) < 0
}

// String returns "external", "internal" or "<kind>:<id>".
func (k Keychain) String() string {
	switch k.Tag {
	case TagExternal:
		return "external"
	case TagInternal:
		return "internal"
	default:
		return k.Kind + ":" + k.ID
	}
}

// ParseKeychain parses the String form of a keychain.
func ParseKeychain(s string) (Keychain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "external":
		return External, nil
	case "internal":
		return Internal, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok || kind == "" || id == "" {
		return Keychain{}, fmt.Errorf("%w: %q", ErrInvalidKeychain, s)
	}
	return Labeled(kind, id), nil
}

// SortKeychains sorts keychains in place using Compare.
func SortKeychains(ks []Keychain) {
	slices.SortFunc(ks, Keychain.Compare)
}
