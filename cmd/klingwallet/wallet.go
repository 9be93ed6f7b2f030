package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingwallet/config"
	"github.com/Klingon-tech/klingwallet/internal/chainoracle"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// passwordEnv lets scripts supply the wallet password without a prompt.
const passwordEnv = "KLINGWALLET_PASSWORD"

var globalFlags = []cli.Flag{
	&cli.StringFlag{Name: "datadir", Usage: "data directory", Value: config.DefaultDataDir()},
	&cli.StringFlag{Name: "network", Usage: "mainnet, testnet, regtest or signet", Value: "mainnet"},
	&cli.StringFlag{Name: "wallet", Aliases: []string{"w"}, Usage: "wallet name (default from config)"},
	&cli.StringFlag{Name: "backend", Usage: "snapshot backend: file or badger (default from config)"},
	&cli.StringFlag{Name: "rpchost", Usage: "bitcoind RPC host:port (default from config)"},
	&cli.StringFlag{Name: "rpcuser", Usage: "bitcoind RPC username"},
	&cli.StringFlag{Name: "rpcpass", Usage: "bitcoind RPC password"},
	&cli.StringFlag{Name: "loglevel", Usage: "log level", Value: "warn"},
}

// loadConfig reads the config file of the chosen network and applies the
// global flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFromFile(c.String("datadir"), c.String("network"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("wallet") {
		cfg.Wallet.Name = c.String("wallet")
	}
	if c.IsSet("backend") {
		cfg.Wallet.Backend = c.String("backend")
	}
	if c.IsSet("rpchost") {
		cfg.Node.Host = c.String("rpchost")
	}
	if c.IsSet("rpcuser") {
		cfg.Node.User = c.String("rpcuser")
	}
	if c.IsSet("rpcpass") {
		cfg.Node.Pass = c.String("rpcpass")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := klog.Init(c.String("loglevel"), false, ""); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is an opened wallet plus what is needed to close it.
type session struct {
	cfg      *config.Config
	keystore *wallet.Keystore
	store    *wallet.Store
	node     *chainoracle.RPC
	password []byte
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close wallet: %v\n", err)
	}
	s.node.Close()
	clear(s.password)
}

// ctx returns a context bounded by the node timeout.
func (s *session) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.Node.Timeout)
}

// openBackend opens the snapshot backend selected in cfg.
func openBackend(cfg *config.Config) (persist.Backend, error) {
	switch cfg.Wallet.Backend {
	case config.BackendBadger:
		return persist.OpenBadgerBackend(filepath.Join(cfg.WalletDir(), cfg.Wallet.Name+".badger"), cfg.Wallet.Name)
	default:
		return persist.NewFileBackend(cfg.WalletDir(), cfg.Wallet.Name)
	}
}

// openWallet decrypts the keystore entry of the selected wallet and opens
// its store against the configured node.
func openWallet(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return nil, err
	}
	if network, err := ks.Network(cfg.Wallet.Name); err != nil {
		return nil, err
	} else if network != cfg.Network {
		return nil, fmt.Errorf("wallet %q belongs to %s, not %s", cfg.Wallet.Name, network, cfg.Network)
	}

	password, err := readPassword(fmt.Sprintf("Password for %q: ", cfg.Wallet.Name))
	if err != nil {
		return nil, err
	}
	descs, err := ks.Load(cfg.Wallet.Name, password)
	if err != nil {
		clear(password)
		return nil, err
	}

	node, err := chainoracle.NewRPC(chainoracle.RPCConfig{
		Host: cfg.Node.Host,
		User: cfg.Node.User,
		Pass: cfg.Node.Pass,
	})
	if err != nil {
		clear(password)
		return nil, err
	}
	backend, err := openBackend(cfg)
	if err != nil {
		node.Close()
		clear(password)
		return nil, err
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
		node.Close()
		clear(password)
		return nil, err
	}
	return &session{cfg: cfg, keystore: ks, store: store, node: node, password: password}, nil
}

// readPassword prompts on the terminal, or reads one line from stdin when
// it is not a terminal. The environment variable wins over both.
func readPassword(prompt string) ([]byte, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return []byte(pw), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("read password: %w", err)
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

// readNewPassword asks for a password twice.
func readNewPassword() ([]byte, error) {
	pw, err := readPassword("New password: ")
	if err != nil {
		return nil, err
	}
	if _, ok := os.LookupEnv(passwordEnv); ok || !term.IsTerminal(int(os.Stdin.Fd())) {
		return pw, nil
	}
	again, err := readPassword("Repeat password: ")
	if err != nil {
		return nil, err
	}
	defer clear(again)
	if string(pw) != string(again) {
		clear(pw)
		return nil, errors.New("passwords do not match")
	}
	return pw, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
