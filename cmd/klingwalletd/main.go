// Klingwallet watch daemon.
//
// Usage:
//
//	klingwalletd [--network=regtest --wallet.name=alice]  Follow the chain
//	klingwalletd --help                                   Show help
//
// The wallet password is read from KLINGWALLET_PASSWORD or prompted for.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Klingon-tech/klingwallet/config"
	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/internal/watch"
	"github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

const version = "0.1.0"

func main() {
	cfg, _, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrVersion) {
			fmt.Println("klingwalletd", version)
			return
		}
		if flags.WroteHelp(err) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logFile := cfg.Log.File
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(cfg.LogsDir(), logFile)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return err
	}
	logger := klog.WithComponent("daemon")

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return err
	}
	password, err := readPassword(cfg.Wallet.Name)
	if err != nil {
		return err
	}
	descs, err := ks.Load(cfg.Wallet.Name, password)
	clear(password)
	if err != nil {
		return err
	}

	node, err := chainoracle.NewRPC(chainoracle.RPCConfig{
		Host: cfg.Node.Host,
		User: cfg.Node.User,
		Pass: cfg.Node.Pass,
	})
	if err != nil {
		return err
	}
	defer node.Close()

	var backend persist.Backend
	if cfg.Wallet.Backend == config.BackendBadger {
		backend, err = persist.OpenBadgerBackend(filepath.Join(cfg.WalletDir(), cfg.Wallet.Name+".badger"), cfg.Wallet.Name)
	} else {
		backend, err = persist.NewFileBackend(cfg.WalletDir(), cfg.Wallet.Name)
	}
	if err != nil {
		return err
	}
	store, err := wallet.Open(wallet.StoreConfig{
		Name:        cfg.Wallet.Name,
		Params:      params,
		Descriptors: descs,
		Backend:     backend,
		Node:        node,
	})
	if err != nil {
		backend.Close()
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close wallet")
		}
	}()

	w, err := watch.New(watch.Config{
		Wallet:     store,
		Chain:      node,
		Interval:   cfg.PollInterval,
		Timeout:    cfg.Node.Timeout,
		FromHeight: cfg.SyncFrom,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("wallet", cfg.Wallet.Name).
		Str("network", cfg.Network).
		Str("node", cfg.Node.Host).
		Dur("interval", cfg.PollInterval).
		Msg("Daemon started")
	w.Run(ctx)
	logger.Info().Stringer("tip", w.Tip()).Msg("Daemon stopped")
	return nil
}

func readPassword(name string) ([]byte, error) {
	if pw, ok := os.LookupEnv("KLINGWALLET_PASSWORD"); ok {
		return []byte(pw), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("no terminal: set KLINGWALLET_PASSWORD")
	}
	fmt.Fprintf(os.Stderr, "Password for %q: ", name)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}
