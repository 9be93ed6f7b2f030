package wallet

import (
	"github.com/Klingon-tech/klingwallet/internal/utxo"
	"github.com/btcsuite/btcd/btcutil"
)

// Balance splits the wallet's unspent value by confirmation.
type Balance struct {
	Confirmed   btcutil.Amount
	Unconfirmed btcutil.Amount
}

// Total returns confirmed plus unconfirmed value.
func (b Balance) Total() btcutil.Amount {
	return b.Confirmed + b.Unconfirmed
}

func balanceOf(utxos []utxo.UTXO) Balance {
	var b Balance
	for i := range utxos {
		if utxos[i].Confirmed() {
			b.Confirmed += utxos[i].Value()
		} else {
			b.Unconfirmed += utxos[i].Value()
		}
	}
	return b
}
