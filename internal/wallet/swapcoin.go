package wallet

import (
	"errors"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PreimageSize is the length of a hashlock preimage.
const PreimageSize = 32

// Preimage unlocks a hashlock.
type Preimage [PreimageSize]byte

var errNoContract = errors.New("swap coin has no contract transaction")

// IncomingSwapCoin is a coin received through a coinswap contract.
type IncomingSwapCoin struct {
	MyPrivKey            *secp256k1.PrivateKey
	OtherPubKey          *secp256k1.PublicKey
	OtherPrivKey         *secp256k1.PrivateKey // Set once the counterparty hands it over.
	ContractTx           *wire.MsgTx
	ContractRedeemScript []byte
	HashlockPrivKey      *secp256k1.PrivateKey
	FundingAmount        btcutil.Amount
	OthersContractSig    *ecdsa.Signature
	HashPreimage         *Preimage
}

// Keychain returns the labeled keychain of the coin, keyed by its contract
// txid.
func (c *IncomingSwapCoin) Keychain() (types.Keychain, error) {
	if c.ContractTx == nil {
		return types.Keychain{}, errNoContract
	}
	return types.IncomingSwapCoin(c.ContractTx.TxHash().String()), nil
}

// OutgoingSwapCoin is a coin sent through a coinswap contract.
type OutgoingSwapCoin struct {
	MyPrivKey            *secp256k1.PrivateKey
	OtherPubKey          *secp256k1.PublicKey
	ContractTx           *wire.MsgTx
	ContractRedeemScript []byte
	TimelockPrivKey      *secp256k1.PrivateKey
	FundingAmount        btcutil.Amount
	OthersContractSig    *ecdsa.Signature
	HashPreimage         *Preimage
}

// Keychain returns the labeled keychain of the coin.
func (c *OutgoingSwapCoin) Keychain() (types.Keychain, error) {
	if c.ContractTx == nil {
		return types.Keychain{}, errNoContract
	}
	return types.OutgoingSwapCoin(c.ContractTx.TxHash().String()), nil
}

// FidelityBond is a timelocked output proving a maker's commitment.
type FidelityBond struct {
	Outpoint   wire.OutPoint
	Amount     btcutil.Amount
	LockTime   uint32
	PubKey     *secp256k1.PublicKey
	ConfHeight uint32 // Height the bond confirmed at.
	CertExpiry uint64 // Difficulty adjustment periods.
}

// CertExpiryHeight converts CertExpiry to a block height using the
// network's retarget interval.
func (b *FidelityBond) CertExpiryHeight(params *chaincfg.Params) uint64 {
	period := uint64(params.TargetTimespan / params.TargetTimePerBlock)
	return b.CertExpiry * period
}

// CertExpired reports whether the bond certificate has expired at height.
func (b *FidelityBond) CertExpired(height uint32, params *chaincfg.Params) bool {
	return uint64(height) >= b.CertExpiryHeight(params)
}
