package utxo

import (
	"encoding/binary"
	"slices"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Commitment digests a UTXO list independently of its order. Returns a
// zero digest for an empty list. Used to detect that the wallet's spendable
// set changed between two polls.
func Commitment(utxos []UTXO) [crypto.DigestSize]byte {
	if len(utxos) == 0 {
		return [crypto.DigestSize]byte{}
	}

	hashes := make([][crypto.DigestSize]byte, len(utxos))
	for i := range utxos {
		hashes[i] = hashUTXO(&utxos[i])
	}
	slices.SortFunc(hashes, func(a, b [crypto.DigestSize]byte) int {
		return slices.Compare(a[:], b[:])
	})

	buf := make([]byte, 0, len(hashes)*crypto.DigestSize)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return crypto.Digest(buf)
}

// hashUTXO hashes txid(32) | index(4) | value(8) | confirmed height(4) |
// keychain | script.
func hashUTXO(u *UTXO) [crypto.DigestSize]byte {
	var buf []byte
	buf = append(buf, u.Outpoint.Hash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, u.Outpoint.Index)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(u.TxOut.Value))
	var height uint32
	if u.Anchor != nil {
		height = u.Anchor.Block.Height
	}
	buf = binary.LittleEndian.AppendUint32(buf, height)
	buf = appendKeychain(buf, u.Keychain)
	buf = append(buf, u.TxOut.PkScript...)
	return crypto.Digest(buf)
}

func appendKeychain(buf []byte, k types.Keychain) []byte {
	buf = append(buf, byte(k.Tag))
	buf = binary.AppendUvarint(buf, uint64(len(k.Kind)))
	buf = append(buf, k.Kind...)
	buf = binary.AppendUvarint(buf, uint64(len(k.ID)))
	return append(buf, k.ID...)
}
