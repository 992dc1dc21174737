package logsbloom

import (
	"encoding/binary"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// toBitSet returns a copy of the filter as a bitset adopted from
// https://github.com/bits-and-blooms/bitset in which bit i is bloom location i.
// Reading the bitvector backwards in little-endian words undoes the reversed
// byte order of the wire layout.
func (f *Filter) toBitSet() *bitset.BitSet {
	var reversed [ByteLength]byte
	for i := range reversed {
		reversed[i] = f.bits[ByteLength-1-i]
	}
	words := make([]uint64, ByteLength/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(reversed[i*8:])
	}
	return bitset.From(words)
}

// BitCount returns the total number of set bits in the filter
func (f *Filter) BitCount() uint {
	return f.toBitSet().Count()
}

// Locations returns the set bit locations in ascending order
func (f *Filter) Locations() []uint {
	set := f.toBitSet()
	locs := make([]uint, 0, set.Count())
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		locs = append(locs, i)
	}
	return locs
}

// PositiveRate returns the probability that an element never added to the
// filter still checks true given how full it currently is
func (f *Filter) PositiveRate() float64 {
	return math.Pow(float64(f.BitCount())/BitLength, HashRounds)
}

// Covers returns true if every bit set in _other_ is also set in the filter.
// A block filter covering the filter of a query may hold all of its elements.
func (f *Filter) Covers(other *Filter) bool {
	if other == nil {
		return true
	}
	return f.toBitSet().IsSuperSet(other.toBitSet())
}
