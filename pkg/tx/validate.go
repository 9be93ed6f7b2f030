package tx

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// Structural limits applied at the wallet boundary.
const (
	MaxTxInputs  = 10_000
	MaxTxOutputs = 10_000
)

// Validation errors.
var (
	ErrNilTx          = errors.New("transaction is nil")
	ErrNoInputs       = errors.New("transaction has no inputs")
	ErrNoOutputs      = errors.New("transaction has no outputs")
	ErrDuplicateInput = errors.New("duplicate input")
	ErrNegativeOutput = errors.New("output value is negative")
	ErrOutputTooLarge = errors.New("output value exceeds max money")
	ErrOutputOverflow = errors.New("output values overflow")
	ErrTooManyInputs  = errors.New("too many inputs")
	ErrTooManyOutputs = errors.New("too many outputs")
)

// Validate checks transaction structure: at least one input and output,
// no outpoint spent twice, every value in [0, MaxSatoshi] and the total
// within MaxSatoshi. It does not look at previous outputs or scripts.
func Validate(tx *wire.MsgTx) error {
	if tx == nil {
		return ErrNilTx
	}
	if len(tx.TxIn) == 0 {
		return ErrNoInputs
	}
	if len(tx.TxOut) == 0 {
		return ErrNoOutputs
	}
	if len(tx.TxIn) > MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.TxIn), MaxTxInputs)
	}
	if len(tx.TxOut) > MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.TxOut), MaxTxOutputs)
	}

	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for i, in := range tx.TxIn {
		if _, ok := seen[in.PreviousOutPoint]; ok {
			return fmt.Errorf("input %d (%s): %w", i, in.PreviousOutPoint, ErrDuplicateInput)
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}

	var total int64
	for i, out := range tx.TxOut {
		if out.Value < 0 {
			return fmt.Errorf("output %d: %w", i, ErrNegativeOutput)
		}
		if out.Value > btcutil.MaxSatoshi {
			return fmt.Errorf("output %d: %w: %d", i, ErrOutputTooLarge, out.Value)
		}
		total += out.Value
		if total > btcutil.MaxSatoshi {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
	}
	return nil
}
