package main

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/urfave/cli/v2"
)

var importdescriptor = cli.Command{
	Name:      "importdescriptor",
	Usage:     "attach a descriptor to a keychain and store it in the keystore",
	ArgsUsage: "<keychain> <descriptor>",
	Action:    importDescriptorAction,
}

func importDescriptorAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: importdescriptor <keychain> <descriptor>")
	}
	k, err := types.ParseKeychain(c.Args().Get(0))
	if err != nil {
		return err
	}
	desc := c.Args().Get(1)

	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	// Register first so a rejected descriptor never reaches the keystore.
	if err := s.store.AddDescriptor(k, desc); err != nil {
		return err
	}
	if err := s.keystore.AddDescriptor(s.cfg.Wallet.Name, s.password, k, desc, wallet.DefaultParams()); err != nil {
		return err
	}
	fmt.Printf("Descriptor imported for %s.\n", k)
	return nil
}
