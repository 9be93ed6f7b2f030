// Package config handles application configuration.
//
// Settings come from three layers, later ones winning: per-network
// defaults, the INI file <datadir>/klingwallet.conf and command-line
// flags. The same struct tags drive both the flags and the file.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
)

// ConfigFilename is the name of the config file inside the data directory.
const ConfigFilename = "klingwallet.conf"

// Storage backends for wallet snapshots.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config holds the wallet tool and daemon settings.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit" no-ini:"true"`
	ConfigFile  string `short:"C" long:"config" description:"Path to configuration file" no-ini:"true"`
	DataDir     string `long:"datadir" description:"Directory to store wallets and snapshots"`
	Network     string `long:"network" description:"Bitcoin network" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"signet"`

	// PollInterval is how often the daemon asks the node for a new tip.
	PollInterval time.Duration `long:"poll-interval" description:"How often the daemon polls the node for new blocks"`
	SyncFrom     uint32        `long:"sync-from" description:"First block height the daemon scans on startup"`

	Wallet WalletConfig `group:"Wallet" namespace:"wallet"`
	Node   NodeConfig   `group:"Node" namespace:"node"`
	Log    LogConfig    `group:"Logging" namespace:"log"`
}

// WalletConfig selects the wallet and where its snapshot lives.
type WalletConfig struct {
	Name    string `long:"name" description:"Wallet name"`
	Backend string `long:"backend" description:"Snapshot storage backend" choice:"file" choice:"badger"`
}

// NodeConfig holds bitcoind RPC settings.
type NodeConfig struct {
	Host    string        `long:"host" description:"bitcoind RPC host:port"`
	User    string        `long:"user" description:"bitcoind RPC username"`
	Pass    string        `long:"pass" default-mask:"-" description:"bitcoind RPC password"`
	Timeout time.Duration `long:"timeout" description:"Timeout for a single node request"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `long:"level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	File  string `long:"file" description:"Also write JSON logs to this file"`
	JSON  bool   `long:"json" description:"Write console logs as JSON"`
}

// Params returns the chain parameters of the configured network.
func (c *Config) Params() (*chaincfg.Params, error) {
	return types.NetParams(c.Network)
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingwallet
//	macOS:   ~/Library/Application Support/Klingwallet
//	Windows: %APPDATA%\Klingwallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Klingwallet")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Klingwallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "Klingwallet")
	default:
		return filepath.Join(home, ".klingwallet")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, c.Network)
}

// WalletDir returns the directory holding wallet snapshots.
func (c *Config) WalletDir() string {
	return filepath.Join(c.NetworkDir(), "wallets")
}

// KeystoreDir returns the directory holding encrypted descriptors.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigPath returns the config file path: the --config flag when given,
// otherwise the file inside the data directory.
func (c *Config) ConfigPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	return filepath.Join(c.DataDir, ConfigFilename)
}
