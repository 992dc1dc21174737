package logsbloom

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// trimLeadingZeros drops the leading run of zero bytes from _element_ so that
// a 20 byte address hashes the same whether or not it's left padded to a
// 32 byte word. An all zero (or empty) element trims down to the empty slice.
func trimLeadingZeros(element []byte) []byte {
	for i := range element {
		if element[i] != 0 {
			return element[i:]
		}
	}
	return element[len(element):]
}

func keccak256(data []byte) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(out[:0])
	return out
}

// bloomPositions derives the HashRounds bit locations for _element_.
// Location i is the big-endian uint16 at digest[2i:2i+2] masked with _mask_.
func bloomPositions(element []byte, mask uint16) [HashRounds]uint {
	digest := keccak256(trimLeadingZeros(element))
	var locs [HashRounds]uint
	for i := range locs {
		locs[i] = uint(binary.BigEndian.Uint16(digest[2*i:]) & mask)
	}
	return locs
}

// byteAndBit maps a bit location onto the bitvector. Locations count from the
// least significant bit of the last byte, so the bitvector reads as one
// big-endian 2048 bit integer.
func byteAndBit(loc uint) (int, byte) {
	return ByteLength - int(loc>>3) - 1, 1 << (loc % 8)
}
