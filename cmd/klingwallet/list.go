package main

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/urfave/cli/v2"
)

var list = cli.Command{
	Name:   "list",
	Usage:  "list the wallets of the selected network",
	Action: listAction,
}

func listAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return err
	}
	names, err := ks.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No wallets.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
