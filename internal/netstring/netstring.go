// Package netstring implements the framing layer of the wire protocol:
// each message travels as "<ascii-decimal-length>:<payload>," per
// http://cr.yp.to/proto/netstrings.txt.
package netstring

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxPayload bounds a single frame. A peer announcing a larger length is
// considered malformed and the connection should be dropped.
const MaxPayload = 1 << 20

// maxLengthDigits is the longest length token we accept before deciding
// the stream is corrupt rather than merely incomplete.
const maxLengthDigits = 9

var (
	ErrMalformedLength = errors.New("netstring: malformed length prefix")
	ErrMissingComma    = errors.New("netstring: missing trailing comma")
	ErrTooLarge        = fmt.Errorf("netstring: payload exceeds %d bytes", MaxPayload)
)

// Encode frames a payload as a netstring.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+maxLengthDigits+2)
	out = strconv.AppendInt(out, int64(len(payload)), 10)
	out = append(out, ':')
	out = append(out, payload...)
	out = append(out, ',')
	return out
}

// Scanner incrementally decodes netstrings from a byte stream. Partial
// frames stay buffered between calls to Feed, so chunk boundaries are
// irrelevant to the caller.
type Scanner struct {
	buf []byte
}

// Feed appends a chunk to the internal buffer and returns every complete
// payload it can decode, in arrival order. A non-nil error means the
// stream is corrupt beyond recovery; the caller should close the
// connection rather than keep feeding it.
func (s *Scanner) Feed(chunk []byte) ([][]byte, error) {
	s.buf = append(s.buf, chunk...)

	var out [][]byte
	for {
		colon := -1
		for i, b := range s.buf {
			if b == ':' {
				colon = i
				break
			}
			if b < '0' || b > '9' || i >= maxLengthDigits {
				return out, ErrMalformedLength
			}
		}
		if colon < 0 {
			// Length prefix not complete yet; wait for more data.
			return out, nil
		}
		if colon == 0 {
			return out, ErrMalformedLength
		}

		length, err := strconv.Atoi(string(s.buf[:colon]))
		if err != nil {
			return out, ErrMalformedLength
		}
		if length > MaxPayload {
			return out, ErrTooLarge
		}

		rest := s.buf[colon+1:]
		if len(rest) <= length {
			return out, nil
		}
		if rest[length] != ',' {
			return out, ErrMissingComma
		}

		payload := make([]byte, length)
		copy(payload, rest[:length])
		out = append(out, payload)
		s.buf = s.buf[colon+1+length+1:]
	}
}

// Buffered reports how many undecoded bytes are pending.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}
