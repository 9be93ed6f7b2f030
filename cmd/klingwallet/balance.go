package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var balance = cli.Command{
	Name:   "balance",
	Usage:  "show confirmed and unconfirmed balance",
	Action: balanceAction,
}

func balanceAction(c *cli.Context) error {
	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.ctx()
	defer cancel()
	bal, err := s.store.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Confirmed:   %v\n", bal.Confirmed)
	fmt.Printf("Unconfirmed: %v\n", bal.Unconfirmed)
	fmt.Printf("Total:       %v\n", bal.Total())
	return nil
}
