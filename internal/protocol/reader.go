package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ReadChunkSize is the size of each read issued against the connection.
const ReadChunkSize = 512

// Limits constrains how much a single connection may deliver.
type Limits struct {
	MaxBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxBytes: 1024 * 1024}
}

// ReadText consumes r until the peer closes it and returns the received
// text. Raw bytes are buffered and validated as UTF-8 only once the stream
// has ended, so multi-byte sequences split across reads are kept intact.
// The text ends at the first NUL byte if one is present.
//
// ReadText blocks for as long as the peer keeps the stream open; callers
// that need a bound set a read deadline on the connection.
func ReadText(r io.Reader, limits Limits) (string, error) {
	var raw []byte
	buf := make([]byte, ReadChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if limits.MaxBytes > 0 && uint64(len(raw)+n) > limits.MaxBytes {
				return "", fmt.Errorf("%w: over %d bytes", ErrMessageTooLarge, limits.MaxBytes)
			}
			raw = append(raw, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("protocol: read: %w", err)
		}
	}

	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidText
	}
	return string(raw), nil
}

// ReadMessage reads one connection's worth of text and decodes it.
func ReadMessage(r io.Reader, limits Limits) (Message, error) {
	text, err := ReadText(r, limits)
	if err != nil {
		return Message{}, err
	}
	return Decode(text)
}
