package main

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/urfave/cli/v2"
)

var newaddress = cli.Command{
	Name:  "newaddress",
	Usage: "reveal the next address of a keychain",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "keychain", Usage: "external, internal or <kind>:<id>", Value: "external"},
	},
	Action: newAddressAction,
}

func newAddressAction(c *cli.Context) error {
	k, err := types.ParseKeychain(c.String("keychain"))
	if err != nil {
		return err
	}
	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := s.store.RevealNextAddress(k)
	if err != nil {
		return err
	}
	index, _ := s.store.LastRevealed(k)
	fmt.Printf("%s (%s/%d)\n", addr, k, index)
	return nil
}
