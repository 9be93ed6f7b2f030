package tx

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Previous-output validation errors.
var (
	ErrInputNotFound = errors.New("previous output not found")
	ErrInputOverflow = errors.New("input values overflow")
	ErrValueCreated  = errors.New("outputs exceed inputs")
	ErrFeeMismatch   = errors.New("unexpected fee")
)

// CheckConservation verifies that tx does not create value and that its fee
// equals wantFee exactly. The builder never pays a fee, so wantFee is zero
// for wallet-built transactions.
func CheckConservation(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher, wantFee btcutil.Amount) error {
	if err := Validate(tx); err != nil {
		return err
	}
	fee, err := Fee(tx, prevOuts)
	if err != nil {
		return err
	}
	if fee < 0 {
		return fmt.Errorf("%w: inputs %v, outputs %v", ErrValueCreated, fee+OutputValue(tx), OutputValue(tx))
	}
	if fee != wantFee {
		return fmt.Errorf("%w: %v, want %v", ErrFeeMismatch, fee, wantFee)
	}
	return nil
}
