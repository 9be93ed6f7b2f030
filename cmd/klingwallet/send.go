package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	ktx "github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli/v2"
)

var send = cli.Command{
	Name:      "send",
	Usage:     "pay an amount in satoshis to an address",
	ArgsUsage: "<address> <satoshis>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "dry-run", Usage: "print the signed transaction without broadcasting"},
	},
	Action: sendAction,
}

func sendAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: send <address> <satoshis>")
	}
	sats, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := types.DecodeAddress(c.Args().Get(0), s.store.Params())
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	tx, err := s.store.SendToAddress(ctx, addr, btcutil.Amount(sats))
	if err != nil {
		return err
	}
	raw, err := ktx.Encode(tx)
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		fmt.Println(hex.EncodeToString(raw))
		return nil
	}
	txid, err := s.store.Broadcast(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Println(txid)
	return nil
}
