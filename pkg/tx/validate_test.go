package tx

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var p2wpkh = append([]byte{0x00, 0x14}, make([]byte, 20)...)

// validTx creates a minimal structurally valid transaction for testing.
func validTx(t *testing.T) *wire.MsgTx {
	t.Helper()
	return NewBuilder().
		AddInput(wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0}).
		AddOutput(1000, p2wpkh).
		Build()
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validTx(t)); err != nil {
		t.Errorf("valid tx should pass: %v", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrNilTx) {
		t.Errorf("expected ErrNilTx, got: %v", err)
	}
}

func TestValidate_NoInputs(t *testing.T) {
	tx := NewBuilder().AddOutput(1000, p2wpkh).Build()
	if err := Validate(tx); !errors.Is(err, ErrNoInputs) {
		t.Errorf("expected ErrNoInputs, got: %v", err)
	}
}

func TestValidate_NoOutputs(t *testing.T) {
	tx := NewBuilder().AddInput(wire.OutPoint{Hash: chainhash.Hash{0x01}}).Build()
	if err := Validate(tx); !errors.Is(err, ErrNoOutputs) {
		t.Errorf("expected ErrNoOutputs, got: %v", err)
	}
}

func TestValidate_DuplicateInput(t *testing.T) {
	same := wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0}
	tx := NewBuilder().AddInput(same).AddInput(same).AddOutput(1000, p2wpkh).Build()
	if err := Validate(tx); !errors.Is(err, ErrDuplicateInput) {
		t.Errorf("expected ErrDuplicateInput, got: %v", err)
	}
}

func TestValidate_OutputValues(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
		want   error
	}{
		{"zero is allowed", []int64{0}, nil},
		{"negative", []int64{-1}, ErrNegativeOutput},
		{"above max money", []int64{btcutil.MaxSatoshi + 1}, ErrOutputTooLarge},
		{"sum above max money", []int64{btcutil.MaxSatoshi, 1}, ErrOutputOverflow},
		{"exactly max money", []int64{btcutil.MaxSatoshi - 5, 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTx(t)
			tx.TxOut = nil
			for _, v := range tt.values {
				tx.AddTxOut(wire.NewTxOut(v, p2wpkh))
			}
			err := Validate(tx)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_TooManyInputs(t *testing.T) {
	b := NewBuilder()
	for i := 0; i <= MaxTxInputs; i++ {
		b.AddInput(wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: uint32(i)})
	}
	tx := b.AddOutput(1, p2wpkh).Build()
	if err := Validate(tx); !errors.Is(err, ErrTooManyInputs) {
		t.Errorf("expected ErrTooManyInputs, got: %v", err)
	}
}
