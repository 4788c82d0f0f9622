package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Writer writes whole frames to an io.Writer. It is safe for concurrent
// use; each frame is written with a single Write call under a lock.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage encodes v and writes it as one frame. Encoding failures
// are returned as *EncodingError before anything is written.
func (w *Writer) WriteMessage(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	return w.writeFrame(frame)
}

// WriteRaw frames and writes an already serialised JSON payload.
func (w *Writer) WriteRaw(payload []byte) error {
	frame, err := EncodeRaw(payload)
	if err != nil {
		return err
	}
	return w.writeFrame(frame)
}

func (w *Writer) writeFrame(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Read reads a single message from r, blocking until the whole frame has
// arrived. It is meant for one-shot use where no bytes past the frame may
// be consumed.
func Read(r io.Reader) (json.RawMessage, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxIncomingSize {
		return nil, &FrameTooLargeError{Length: length, Max: MaxIncomingSize}
	}
	frame := make([]byte, HeaderSize+int(length))
	copy(frame, header[:])
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		return nil, fmt.Errorf("read message payload: %w", err)
	}
	msg, _, _, err := Decode(frame)
	return msg, err
}

// Write encodes v and writes it to w as a single frame.
func Write(w io.Writer, v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
