package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var address = cli.Command{
	Name:   "address",
	Usage:  "show the current receiving address",
	Action: addressAction,
}

func addressAction(c *cli.Context) error {
	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := s.store.GetAddress()
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}
