package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Network names accepted by NetParams.
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
	Regtest = "regtest"
	Signet  = "signet"
)

// ErrWrongNetwork is returned when an address belongs to another network.
var ErrWrongNetwork = errors.New("address is for a different network")

// NetParams returns the chain parameters for a network name.
func NetParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case Mainnet, "main", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case Testnet, "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case Regtest:
		return &chaincfg.RegressionNetParams, nil
	case Signet:
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// DecodeAddress decodes an address string and checks that it belongs to the
// given network.
func DecodeAddress(s string, params *chaincfg.Params) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(strings.TrimSpace(s), params)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("%w: %s is not a %s address", ErrWrongNetwork, s, params.Name)
	}
	return addr, nil
}
