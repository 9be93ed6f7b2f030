package config

import (
	"net"
	"time"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Default settings shared by every network.
const (
	DefaultWalletName   = "default"
	DefaultPollInterval = 10 * time.Second
	DefaultNodeTimeout  = 30 * time.Second
)

// DefaultRPCPort returns bitcoind's default RPC port for a network.
func DefaultRPCPort(network string) string {
	switch network {
	case types.Testnet:
		return "18332"
	case types.Regtest:
		return "18443"
	case types.Signet:
		return "38332"
	default:
		return "8332"
	}
}

// Default returns the default configuration for the given network.
func Default(network string) *Config {
	if network == "" {
		network = types.Mainnet
	}
	return &Config{
		DataDir:      DefaultDataDir(),
		Network:      network,
		PollInterval: DefaultPollInterval,
		Wallet: WalletConfig{
			Name:    DefaultWalletName,
			Backend: BackendFile,
		},
		Node: NodeConfig{
			Host:    net.JoinHostPort("127.0.0.1", DefaultRPCPort(network)),
			Timeout: DefaultNodeTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
