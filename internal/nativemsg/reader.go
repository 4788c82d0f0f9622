package nativemsg

import (
	"encoding/json"
	"errors"
	"io"
)

const readChunkSize = 32 * 1024

// Reader assembles frames from an io.Reader that may deliver them in any
// chunking: partial frames, exactly one, or several per read.
type Reader struct {
	r     io.Reader
	max   uint32
	buf   []byte
	chunk []byte
	skip  uint64
	eof   bool
}

// NewReader returns a Reader accepting frames up to MaxIncomingSize.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, MaxIncomingSize)
}

// NewReaderSize returns a Reader rejecting frames larger than max bytes.
// A max of 0 disables the limit.
func NewReaderSize(r io.Reader, max uint32) *Reader {
	return &Reader{r: r, max: max, chunk: make([]byte, readChunkSize)}
}

// Buffered returns the number of bytes waiting for the rest of a frame.
func (r *Reader) Buffered() int { return len(r.buf) }

// Next returns the next complete message.
//
// Framing errors cover exactly one frame and the Reader remains usable.
// An oversized frame is skipped without buffering its payload. Next
// returns io.EOF at a clean end of input and io.ErrUnexpectedEOF when the
// input ends inside a frame.
func (r *Reader) Next() (json.RawMessage, error) {
	for {
		if r.skip > 0 {
			n := r.skip
			if uint64(len(r.buf)) < n {
				n = uint64(len(r.buf))
			}
			r.consume(int(n))
			r.skip -= n
		}
		if r.skip == 0 {
			msg, rest, ok, err := decode(r.buf, r.max)
			if err != nil {
				var tooLarge *FrameTooLargeError
				if errors.As(err, &tooLarge) {
					r.skip = uint64(HeaderSize) + uint64(tooLarge.Length)
				} else {
					r.setBuf(rest)
				}
				return nil, err
			}
			if ok {
				r.setBuf(rest)
				return msg, nil
			}
		}
		if r.eof {
			if len(r.buf) > 0 || r.skip > 0 {
				r.buf = nil
				r.skip = 0
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

func (r *Reader) fill() error {
	n, err := r.r.Read(r.chunk)
	if n > 0 {
		r.buf = append(r.buf, r.chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		return err
	}
	return nil
}

func (r *Reader) consume(n int) {
	r.setBuf(r.buf[n:])
}

func (r *Reader) setBuf(rest []byte) {
	if len(rest) == 0 {
		r.buf = r.buf[:0]
		return
	}
	r.buf = rest
}
