package nativemsg

import (
	"encoding/binary"
	"encoding/json"
	"errors"
)

const (
	// HeaderSize is the length of the little-endian length prefix.
	HeaderSize = 4

	// MaxOutgoingSize is the largest message a host may send to the
	// browser (1MB).
	MaxOutgoingSize = 1024 * 1024

	// MaxIncomingSize caps the frames accepted from the browser.
	MaxIncomingSize = 64 * 1024 * 1024
)

// Encode serialises v as JSON and prepends its length.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return EncodeRaw(payload)
}

// EncodeRaw frames an already serialised JSON payload.
func EncodeRaw(payload []byte) ([]byte, error) {
	if len(payload) > MaxOutgoingSize {
		return nil, &EncodingError{Size: len(payload)}
	}
	if !json.Valid(payload) {
		return nil, &EncodingError{Size: len(payload), Err: errors.New("payload is not valid JSON")}
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// Decode extracts the first frame of buf.
//
// When buf does not hold a whole frame yet, ok is false, err is nil and
// rest is buf itself. Otherwise msg holds the JSON payload and rest the
// bytes following the frame. A complete frame carrying invalid JSON yields
// a *FramingError with rest already past the frame.
//
// Decode puts no limit on the declared length; Reader enforces one.
func Decode(buf []byte) (msg json.RawMessage, rest []byte, ok bool, err error) {
	return decode(buf, 0)
}

func decode(buf []byte, max uint32) (json.RawMessage, []byte, bool, error) {
	if len(buf) < HeaderSize {
		return nil, buf, false, nil
	}
	length := binary.LittleEndian.Uint32(buf)
	if max > 0 && length > max {
		return nil, buf, false, &FrameTooLargeError{Length: length, Max: max}
	}
	if uint64(len(buf)) < uint64(HeaderSize)+uint64(length) {
		return nil, buf, false, nil
	}
	end := HeaderSize + int(length)
	payload := buf[HeaderSize:end]
	rest := buf[end:]

	var probe json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, rest, false, &FramingError{Length: length, Err: err}
	}
	msg := make(json.RawMessage, len(payload))
	copy(msg, payload)
	return msg, rest, true, nil
}
