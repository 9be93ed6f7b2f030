package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/utxo"
	"github.com/btcsuite/btcd/btcutil"
)

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []utxo.UTXO    // Selected UTXOs to spend.
	Total  btcutil.Amount // Sum of selected input values.
	Change btcutil.Amount // Change = Total - target.
}

// SelectCoins accumulates utxos in the given order until their sum covers
// target. The surplus, which may be large, becomes change.
func SelectCoins(utxos []utxo.UTXO, target btcutil.Amount) (*CoinSelection, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, target)
	}

	sel := &CoinSelection{}
	for _, u := range utxos {
		if u.Value() <= 0 {
			continue
		}
		sel.Inputs = append(sel.Inputs, u)
		sel.Total += u.Value()
		if sel.Total >= target {
			sel.Change = sel.Total - target
			return sel, nil
		}
	}
	return nil, fmt.Errorf("%w: have %v, need %v", ErrInsufficientFunds, sel.Total, target)
}
