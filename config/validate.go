package config

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := types.NetParams(cfg.Network); err != nil {
		return err
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must be set")
	}
	if err := persist.ValidateName(cfg.Wallet.Name); err != nil {
		return fmt.Errorf("wallet.name: %w", err)
	}
	switch cfg.Wallet.Backend {
	case BackendFile, BackendBadger:
	default:
		return fmt.Errorf("wallet.backend must be %q or %q", BackendFile, BackendBadger)
	}
	if cfg.Node.Timeout <= 0 {
		return fmt.Errorf("node.timeout must be positive")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}
