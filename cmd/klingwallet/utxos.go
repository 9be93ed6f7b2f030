package main

import (
	"github.com/Klingon-tech/klingwallet/internal/utxo"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/urfave/cli/v2"
)

var utxos = cli.Command{
	Name:  "utxos",
	Usage: "list unspent outputs",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "keychain", Usage: "only list this keychain"},
	},
	Action: utxosAction,
}

type utxoJSON struct {
	Outpoint      string `json:"outpoint"`
	Value         int64  `json:"value"`
	Keychain      string `json:"keychain"`
	Index         uint32 `json:"index"`
	Address       string `json:"address,omitempty"`
	Confirmations uint32 `json:"confirmations"`
	BlockHeight   uint32 `json:"block_height,omitempty"`
}

func utxosAction(c *cli.Context) error {
	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := s.ctx()
	defer cancel()

	var coins []utxo.UTXO
	if c.IsSet("keychain") {
		k, err := types.ParseKeychain(c.String("keychain"))
		if err != nil {
			return err
		}
		coins, err = s.store.GetUTXOs(ctx, k)
		if err != nil {
			return err
		}
	} else if coins, err = s.store.ListUnspent(ctx); err != nil {
		return err
	}
	tip, err := s.node.ChainTip(ctx)
	if err != nil {
		return err
	}

	out := make([]utxoJSON, 0, len(coins))
	for _, u := range coins {
		j := utxoJSON{
			Outpoint: u.Outpoint.String(),
			Value:    int64(u.Value()),
			Keychain: u.Keychain.String(),
			Index:    u.Index,
		}
		if addr := types.ScriptAddress(u.TxOut.PkScript, s.store.Params()); addr != nil {
			j.Address = addr.String()
		}
		if u.Anchor != nil && u.Anchor.Block.Height <= tip.Height {
			j.BlockHeight = u.Anchor.Block.Height
			j.Confirmations = tip.Height - u.Anchor.Block.Height + 1
		}
		out = append(out, j)
	}
	return printJSON(out)
}
