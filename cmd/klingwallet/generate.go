package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/urfave/cli/v2"
)

var generate = cli.Command{
	Name:      "generate",
	Usage:     "mine blocks to the wallet's receiving address (regtest only)",
	ArgsUsage: "<blocks>",
	Action:    generateAction,
}

func generateAction(c *cli.Context) error {
	n, err := strconv.Atoi(c.Args().First())
	if err != nil || n <= 0 {
		return errors.New("usage: generate <blocks>")
	}
	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.cfg.Network != types.Regtest {
		return fmt.Errorf("generate only works on %s", types.Regtest)
	}

	addr, err := s.store.GetAddress()
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	hashes, err := s.node.GenerateToAddress(ctx, n, addr)
	if err != nil {
		return err
	}
	for _, hash := range hashes {
		if _, err := s.store.ApplyBlock(ctx, hash); err != nil {
			return err
		}
	}
	fmt.Printf("Mined %d blocks to %s.\n", len(hashes), addr)
	return nil
}
