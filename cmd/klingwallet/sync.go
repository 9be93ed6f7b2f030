package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var syncCmd = cli.Command{
	Name:  "sync",
	Usage: "apply every block from a height up to the tip",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "from", Usage: "first height to scan"},
	},
	Action: syncAction,
}

func syncAction(c *cli.Context) error {
	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	// Scans may take many node round trips; no overall deadline.
	tip, err := s.store.Sync(context.Background(), uint32(c.Uint("from")))
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	bal, err := s.store.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Synced to height %d. Balance: %v (%v unconfirmed)\n", tip, bal.Total(), bal.Unconfirmed)
	return nil
}
