package main

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/urfave/cli/v2"
)

var applyblock = cli.Command{
	Name:      "applyblock",
	Usage:     "apply one block to the wallet",
	ArgsUsage: "<blockhash>",
	Action:    applyBlockAction,
}

func applyBlockAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: applyblock <blockhash>")
	}
	hash, err := chainhash.NewHashFromStr(c.Args().First())
	if err != nil {
		return fmt.Errorf("block hash: %w", err)
	}

	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.ctx()
	defer cancel()
	cs, err := s.store.ApplyBlock(ctx, *hash)
	if err != nil {
		return err
	}
	if cs == nil {
		fmt.Println("Nothing relevant in block.")
		return nil
	}
	fmt.Printf("Applied %d transactions, %d anchors.\n", len(cs.Txs), len(cs.Anchors))
	return nil
}
