package main

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/persist"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/urfave/cli/v2"
)

var deleteCmd = cli.Command{
	Name:  "delete",
	Usage: "remove a wallet's keystore entry and snapshot",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Usage: "confirm deletion"},
	},
	Action: deleteAction,
}

func deleteAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !c.Bool("yes") {
		return errors.New("deleting a wallet cannot be undone; pass --yes to confirm")
	}
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return err
	}
	if err := ks.Delete(cfg.Wallet.Name); err != nil {
		return err
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	if r, ok := backend.(persist.Remover); ok {
		if err := r.Remove(); err != nil {
			return err
		}
	}
	fmt.Printf("Wallet %q deleted.\n", cfg.Wallet.Name)
	return nil
}
