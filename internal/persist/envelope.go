package persist

import (
	"bytes"
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/changeset"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
)

// Snapshot envelope: magic(4) | version(1) | blake3(payload)(32) | payload.
const (
	envelopeVersion = 1
	headerSize      = len(magic) + 1 + crypto.DigestSize
)

var magic = [4]byte{'K', 'W', 'A', 'L'}

// seal encodes cs and wraps it in the snapshot envelope.
func seal(cs *changeset.ChangeSet) ([]byte, error) {
	payload, err := cs.Encode()
	if err != nil {
		return nil, err
	}
	digest := crypto.Digest(payload)

	buf := make([]byte, 0, headerSize+len(payload))
	buf = append(buf, magic[:]...)
	buf = append(buf, envelopeVersion)
	buf = append(buf, digest[:]...)
	return append(buf, payload...), nil
}

// open checks the envelope and decodes the changeset inside.
func open(data []byte) (*changeset.ChangeSet, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptSnapshot, len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %x", ErrCorruptSnapshot, data[:len(magic)])
	}
	if v := data[len(magic)]; v != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, v)
	}
	digest := data[len(magic)+1 : headerSize]
	payload := data[headerSize:]
	if !crypto.VerifyDigest(payload, digest) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorruptSnapshot)
	}
	cs, err := changeset.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return cs, nil
}
