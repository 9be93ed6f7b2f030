package descriptor

import (
	"fmt"
	"strings"
)

// Character sets of the BIP-380 descriptor checksum.
const (
	inputCharset    = "0123456789()[],'/*abcdefgh@:$%{}IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "
	checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	checksumLen     = 8
)

func polyMod(c uint64, val uint64) uint64 {
	c0 := c >> 35
	c = ((c & 0x7ffffffff) << 5) ^ val
	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}
	return c
}

// Checksum computes the 8 character checksum of a descriptor body (the
// part before '#').
func Checksum(body string) (string, error) {
	c := uint64(1)
	var cls, clsCount uint64
	for i, ch := range body {
		pos := strings.IndexRune(inputCharset, ch)
		if pos < 0 {
			return "", fmt.Errorf("%w: invalid character %q at %d", ErrInvalidDescriptor, ch, i)
		}
		c = polyMod(c, uint64(pos&31))
		cls = cls*3 + uint64(pos>>5)
		clsCount++
		if clsCount == 3 {
			c = polyMod(c, cls)
			cls, clsCount = 0, 0
		}
	}
	if clsCount > 0 {
		c = polyMod(c, cls)
	}
	for range checksumLen {
		c = polyMod(c, 0)
	}
	c ^= 1

	var out [checksumLen]byte
	for j := range checksumLen {
		out[j] = checksumCharset[(c>>(5*(7-j)))&31]
	}
	return string(out[:]), nil
}

// AddChecksum appends "#checksum" to a descriptor body.
func AddChecksum(body string) (string, error) {
	sum, err := Checksum(body)
	if err != nil {
		return "", err
	}
	return body + "#" + sum, nil
}
