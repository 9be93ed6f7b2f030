package types

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptAddress extracts the single address paid by a script. Returns nil
// for non-standard or multi-address scripts.
func ScriptAddress(pkScript []byte, params *chaincfg.Params) btcutil.Address {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil || len(addrs) != 1 {
		return nil
	}
	return addrs[0]
}

// IsSegwit reports whether the script is a native witness program.
func IsSegwit(pkScript []byte) bool {
	return txscript.IsWitnessProgram(pkScript)
}
