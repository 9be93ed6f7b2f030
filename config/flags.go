package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// ErrVersion is returned by Load when --version was given.
var ErrVersion = errors.New("version requested")

// Load builds the daemon configuration from args (without the program
// name). Resolution order:
//  1. Defaults for the network named on the command line
//  2. Auto-create data dirs + default config (idempotent)
//  3. Config file
//  4. Command-line flags
//
// Returns the remaining positional arguments. When help was requested the
// returned error satisfies flags.WroteHelp.
func Load(args []string) (*Config, []string, error) {
	// Pre-parse to learn the network, data directory and config path.
	pre := &Config{}
	preParser := flags.NewParser(pre, flags.HelpFlag|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			// Let the full parser print the help text.
			_, err = flags.NewParser(Default(""), flags.Default).ParseArgs(args)
		}
		return nil, nil, err
	}
	if pre.ShowVersion {
		return nil, nil, ErrVersion
	}

	cfg := Default(pre.Network)
	if pre.DataDir != "" {
		cfg.DataDir = pre.DataDir
	}
	cfg.ConfigFile = pre.ConfigFile

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	if err := LoadFile(cfg, cfg.ConfigPath()); err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}

	// Parse the command line again so flags take precedence over the file.
	parser := flags.NewParser(cfg, flags.Default)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, rest, nil
}

// LoadFromFile loads config from defaults and the conf file only, for
// tools that bring their own flag parsing.
func LoadFromFile(dataDir, network string) (*Config, error) {
	cfg := Default(network)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	if err := LoadFile(cfg, cfg.ConfigPath()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	// The file may not switch networks under a caller that chose one.
	if network != "" {
		cfg.Network = network
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{
		cfg.DataDir,
		cfg.NetworkDir(),
		cfg.WalletDir(),
		cfg.KeystoreDir(),
		cfg.LogsDir(),
	} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	path := cfg.ConfigPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefaultConfig(path, cfg); err != nil {
			return err
		}
	}
	return nil
}
