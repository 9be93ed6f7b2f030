package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/descriptor"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// BIP-84 derivation: m/84'/coin'/account'/change/index.
const (
	PurposeBIP84   = 84
	ChangeExternal = 0
	ChangeInternal = 1
)

// DefaultDescriptors returns the BIP-84 wpkh descriptors of account 0 for
// the External and Internal keychains. The descriptors carry the master
// private key, so they can sign.
func DefaultDescriptors(seed []byte, params *chaincfg.Params) (map[types.Keychain]string, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, fmt.Errorf("seed must be %d to %d bytes, got %d", hdkeychain.MinSeedBytes, hdkeychain.MaxSeedBytes, len(seed))
	}
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	defer master.Zero()

	out := make(map[types.Keychain]string, 2)
	for k, change := range map[types.Keychain]int{
		types.External: ChangeExternal,
		types.Internal: ChangeInternal,
	} {
		body := fmt.Sprintf("wpkh(%s/%dh/%dh/0h/%d/*)", master, PurposeBIP84, params.HDCoinType, change)
		desc, err := descriptor.AddChecksum(body)
		if err != nil {
			return nil, err
		}
		out[k] = desc
	}
	return out, nil
}

// DescriptorsFromMnemonic derives the seed of mnemonic and returns its
// default descriptors.
func DescriptorsFromMnemonic(mnemonic, passphrase string, params *chaincfg.Params) (map[types.Keychain]string, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(seed)
	return DefaultDescriptors(seed, params)
}
