package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/urfave/cli/v2"
)

var create = cli.Command{
	Name:  "create",
	Usage: "create a wallet from a new or existing BIP-39 mnemonic",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "import", Usage: "read an existing mnemonic from stdin"},
		&cli.StringFlag{Name: "passphrase", Usage: "optional BIP-39 passphrase"},
	},
	Action: createAction,
}

func createAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return err
	}
	if ks.Exists(cfg.Wallet.Name) {
		return fmt.Errorf("%w: %q", wallet.ErrWalletExists, cfg.Wallet.Name)
	}

	var mnemonic string
	if c.Bool("import") {
		fmt.Fprint(os.Stderr, "Mnemonic: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read mnemonic: %w", err)
		}
		mnemonic = strings.Join(strings.Fields(line), " ")
		if !wallet.ValidateMnemonic(mnemonic) {
			return wallet.ErrInvalidMnemonic
		}
	} else {
		if mnemonic, err = wallet.GenerateMnemonic(); err != nil {
			return err
		}
	}

	descs, err := wallet.DescriptorsFromMnemonic(mnemonic, c.String("passphrase"), params)
	if err != nil {
		return err
	}
	password, err := readNewPassword()
	if err != nil {
		return err
	}
	defer clear(password)
	if err := ks.Create(cfg.Wallet.Name, cfg.Network, descs, password, wallet.DefaultParams()); err != nil {
		return err
	}

	fmt.Printf("Wallet %q created for %s.\n", cfg.Wallet.Name, cfg.Network)
	if !c.Bool("import") {
		fmt.Println("Write down your mnemonic and keep it safe:")
		fmt.Println()
		fmt.Println("  " + mnemonic)
		fmt.Println()
	}
	return nil
}
