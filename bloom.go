/*
Package logsbloom implements the fixed size log bloom filter used to summarize
the addresses and topics of contract logs into a 2048 bit vector.

The size of the filter, the number of bits set per element and the hash
function (Keccak-256) are fixed by the protocol and aren't configurable.
Elements are stripped of leading zero bytes before hashing, so an address
hashes the same whether it's passed as 20 raw bytes or as a left padded
32 byte topic.

Filters live either in memory (Filter) or in a Redis string (RedisFilter).
Both share the same 256 byte layout, the bitvector read as one big-endian
2048 bit integer.
*/
package logsbloom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// ByteLength is the size of the bitvector in bytes
	ByteLength = 256

	// BitLength is the number of bits in the bitvector
	BitLength = ByteLength * 8

	// HashRounds is the number of bits set for every element
	HashRounds = 3

	// AddMask selects the 11 low bits of every digest window, enough to
	// address all of the 2048 bits.
	AddMask uint16 = 0x07FF

	// LegacyCheckMask is the 9 bit mask older lookups were done with. It only
	// reaches the lowest 512 bits and so can miss elements set with AddMask.
	LegacyCheckMask uint16 = 0x01FF
)

// Filter is a 2048 bit log bloom filter.
// A Filter isn't safe for concurrent mutation. Concurrent Check calls are fine
// as long as no Add or Union runs at the same time.
type Filter struct {
	bits [ByteLength]byte
}

// New returns an empty Filter
func New() *Filter {
	return &Filter{}
}

// FromBytes creates a Filter from the 256 byte bitvector _buf_.
// _buf_ is copied, the caller keeps ownership of it.
func FromBytes(buf []byte) (*Filter, error) {
	if len(buf) != ByteLength {
		return nil, &InvalidLengthError{Length: len(buf)}
	}
	f := &Filter{}
	copy(f.bits[:], buf)
	return f, nil
}

// FromHex creates a Filter from the hex encoding of its bitvector.
// The 0x prefix is optional.
func FromHex(s string) (*Filter, error) {
	buf, err := decodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("logsbloom: invalid hex bitvector: %w", err)
	}
	return FromBytes(buf)
}

// Add sets the bits for _element_
func (f *Filter) Add(element []byte) {
	for _, loc := range bloomPositions(element, AddMask) {
		i, bit := byteAndBit(loc)
		f.bits[i] |= bit
	}
}

// Check returns false if _element_ is definitely not in the filter and true
// if it may be.
func (f *Filter) Check(element []byte) bool {
	return f.check(element, AddMask)
}

// CheckLegacy looks _element_ up with LegacyCheckMask, reproducing the
// results of older lookups bit for bit. It can report false negatives for
// elements set with Add and should only be used where those exact results
// are needed.
func (f *Filter) CheckLegacy(element []byte) bool {
	return f.check(element, LegacyCheckMask)
}

func (f *Filter) check(element []byte, mask uint16) bool {
	for _, loc := range bloomPositions(element, mask) {
		i, bit := byteAndBit(loc)
		if f.bits[i]&bit == 0 {
			return false
		}
	}
	return true
}

// MultiCheck returns true if every one of _topics_ may be in the filter.
// An empty list of topics always matches.
func (f *Filter) MultiCheck(topics [][]byte) bool {
	for _, topic := range topics {
		if !f.Check(topic) {
			return false
		}
	}
	return true
}

// MultiCheckLegacy is MultiCheck done with CheckLegacy
func (f *Filter) MultiCheckLegacy(topics [][]byte) bool {
	for _, topic := range topics {
		if !f.CheckLegacy(topic) {
			return false
		}
	}
	return true
}

// MultiCheckHex is MultiCheck for hex encoded _topics_. All topics are
// decoded before any lookup and a malformed one fails with ErrInvalidTopic.
func (f *Filter) MultiCheckHex(topics []string) (bool, error) {
	decoded, err := DecodeTopics(topics)
	if err != nil {
		return false, err
	}
	return f.MultiCheck(decoded), nil
}

// Union merges _other_ into the filter. A nil _other_ is a no-op.
func (f *Filter) Union(other *Filter) {
	if other == nil {
		return
	}
	for i := 0; i < ByteLength; i++ {
		f.bits[i] |= other.bits[i]
	}
}

// Bytes returns a copy of the 256 byte bitvector
func (f *Filter) Bytes() []byte {
	buf := make([]byte, ByteLength)
	copy(buf, f.bits[:])
	return buf
}

// Hex returns the 0x prefixed hex encoding of the bitvector
func (f *Filter) Hex() string {
	return hexutil.Encode(f.bits[:])
}

func (f *Filter) String() string {
	return f.Hex()
}

// Equals checks if two filters have the same bits set
func (f *Filter) Equals(other *Filter) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(f.bits[:], other.bits[:])
}

// WriteTo writes the raw bitvector to _stream_
func (f *Filter) WriteTo(stream io.Writer) (int64, error) {
	n, err := stream.Write(f.bits[:])
	return int64(n), err
}

// ReadFrom reads exactly ByteLength bytes of raw bitvector from _stream_ into
// the filter. Unlike most io.ReaderFrom implementations it doesn't read to
// EOF, anything after the bitvector is left in _stream_. The filter is left
// untouched unless all 256 bytes could be read.
func (f *Filter) ReadFrom(stream io.Reader) (int64, error) {
	var buf [ByteLength]byte
	n, err := io.ReadFull(stream, buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return int64(n), &InvalidLengthError{Length: n}
		}
		return int64(n), err
	}
	f.bits = buf
	return int64(n), nil
}

// DecodeTopics decodes hex encoded topics, the 0x prefix being optional
func DecodeTopics(topics []string) ([][]byte, error) {
	decoded := make([][]byte, len(topics))
	for i, topic := range topics {
		b, err := decodeHex(topic)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidTopic, topic, err)
		}
		decoded[i] = b
	}
	return decoded, nil
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
