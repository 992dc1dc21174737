package logsbloom

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTopic is returned when a hex encoded topic can't be decoded
	ErrInvalidTopic = errors.New("logsbloom: invalid hex topic")

	// ErrFilterNotFound is returned when no filter is stored at a Redis key
	ErrFilterNotFound = errors.New("logsbloom: filter not found")
)

// InvalidLengthError is returned when a bitvector of the wrong size is used
// to construct a Filter.
type InvalidLengthError struct {
	Length int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("logsbloom: bitvector must be %d bytes long, got %d", ByteLength, e.Length)
}
