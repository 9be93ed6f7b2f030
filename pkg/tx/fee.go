package tx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// InputValue sums the previous outputs spent by tx.
func InputValue(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher) (btcutil.Amount, error) {
	var total btcutil.Amount
	for i, in := range tx.TxIn {
		prev := prevOuts.FetchPrevOutput(in.PreviousOutPoint)
		if prev == nil {
			return 0, fmt.Errorf("input %d (%s): %w", i, in.PreviousOutPoint, ErrInputNotFound)
		}
		if prev.Value < 0 || prev.Value > btcutil.MaxSatoshi {
			return 0, fmt.Errorf("input %d (%s): %w", i, in.PreviousOutPoint, ErrInputOverflow)
		}
		total += btcutil.Amount(prev.Value)
		if total > btcutil.MaxSatoshi {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
	}
	return total, nil
}

// OutputValue sums the outputs of tx.
func OutputValue(tx *wire.MsgTx) btcutil.Amount {
	var total btcutil.Amount
	for _, out := range tx.TxOut {
		total += btcutil.Amount(out.Value)
	}
	return total
}

// Fee returns the implicit fee of tx: inputs minus outputs. The result is
// negative when tx creates value.
func Fee(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher) (btcutil.Amount, error) {
	in, err := InputValue(tx, prevOuts)
	if err != nil {
		return 0, err
	}
	return in - OutputValue(tx), nil
}
