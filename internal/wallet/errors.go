package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil/psbt"
)

// Wallet errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrNoSigner          = errors.New("no signer for keychain")
	ErrNoExternal        = errors.New("no external keychain registered")
	ErrClosed            = errors.New("wallet is closed")
)

// SigningError reports an input that could not be signed.
type SigningError struct {
	Input    int
	Keychain types.Keychain
	Err      error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign input %d (%s): %v", e.Input, e.Keychain, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// InputError is one input that failed to finalize.
type InputError struct {
	Index int
	Err   error
}

// FinalizationError lists the inputs of Packet that could not be
// finalized. Inputs that did finalize are left finalized in Packet.
type FinalizationError struct {
	Packet *psbt.Packet
	Inputs []InputError
}

func (e *FinalizationError) Error() string {
	parts := make([]string, len(e.Inputs))
	for i, in := range e.Inputs {
		parts[i] = fmt.Sprintf("input %d: %v", in.Index, in.Err)
	}
	return "finalize psbt: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-input causes to errors.Is and errors.As.
func (e *FinalizationError) Unwrap() []error {
	errs := make([]error, len(e.Inputs))
	for i, in := range e.Inputs {
		errs[i] = in.Err
	}
	return errs
}
