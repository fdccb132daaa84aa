// Package identifier implements the fixed-width circular identifier
// space the Chord ring is built on: 128-bit big-endian ids derived
// from a node's public socket address, and the ring arithmetic
// (strict-between, power-of-two offsets) used to route lookups around it.
package identifier

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
)

// ByteLength is the width of the identifier space in bytes (128 bits).
const ByteLength = 16

// ID is a position on the Chord ring: the integers modulo 2^128,
// stored big-endian.
type ID [ByteLength]byte

// Derive computes a node identifier as MD5(ip_octets || port_be) where
// ip_octets is 4 bytes for an IPv4 address or 16 bytes for IPv6, and
// port is 2 big-endian bytes, per the wire identifier scheme.
func Derive(addr *net.TCPAddr) ID {
	var buf []byte

	if v4 := addr.IP.To4(); v4 != nil {
		buf = make([]byte, 0, 4+2)
		buf = append(buf, v4...)
	} else {
		v6 := addr.IP.To16()
		buf = make([]byte, 0, 16+2)
		buf = append(buf, v6...)
	}

	var portBytes [2]byte
	binary.BigEndian.PutUint16(portBytes[:], uint16(addr.Port))
	buf = append(buf, portBytes[:]...)

	return md5.Sum(buf)
}

// FromHex decodes a 32-character lowercase hex string into an ID.
func FromHex(s string) (ID, error) {
	var id ID

	if len(s) != ByteLength*2 {
		return id, fmt.Errorf("identifier must be %d hex characters, got %d", ByteLength*2, len(s))
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid hex identifier: %w", err)
	}

	copy(id[:], decoded)
	return id, nil
}

// String renders the identifier as 32 lowercase hex digits.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Position returns the ring position of id as an unsigned 128-bit
// integer, represented as two big-endian uint64 halves (hi, lo).
func (id ID) Position() (hi, lo uint64) {
	hi = binary.BigEndian.Uint64(id[0:8])
	lo = binary.BigEndian.Uint64(id[8:16])
	return hi, lo
}

// compare returns -1, 0, or 1 according to whether a's ring position
// is less than, equal to, or greater than b's.
func compare(a, b ID) int {
	for i := 0; i < ByteLength; i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}

// Equal reports whether two identifiers occupy the same ring position.
func Equal(a, b ID) bool {
	return compare(a, b) == 0
}

// StrictlyBetween reports whether pos lies strictly between start and
// end walking clockwise around the ring:
//
//   - if start < end:  start < pos < end
//   - if start > end:  pos > start OR pos < end (wraps through zero)
//   - if start == end: always false
func StrictlyBetween(pos, start, end ID) bool {
	switch compare(start, end) {
	case -1:
		return compare(start, pos) < 0 && compare(pos, end) < 0
	case 1:
		return compare(pos, start) > 0 || compare(pos, end) < 0
	default:
		return false
	}
}

// AddPowerOfTwo returns id + 2^i (mod 2^128), used to compute the
// target position for finger table slot i.
func AddPowerOfTwo(id ID, i int) ID {
	hi, lo := id.Position()

	if i < 64 {
		addend := uint64(1) << uint(i)
		newLo := lo + addend
		carry := uint64(0)
		if newLo < lo {
			carry = 1
		}
		newHi := hi + carry
		return fromPosition(newHi, newLo)
	}

	addend := uint64(1) << uint(i-64)
	newHi := hi + addend
	return fromPosition(newHi, lo)
}

func fromPosition(hi, lo uint64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[0:8], hi)
	binary.BigEndian.PutUint64(id[8:16], lo)
	return id
}
