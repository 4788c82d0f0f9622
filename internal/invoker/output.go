package invoker

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

const maxOutputExcerpt = 200

// responseFromOutput interprets what a handler produced on success. An
// object with a boolean "success" member is already a response envelope
// and is passed through, filling the fields the handler left out; any
// other JSON document becomes the data of a success envelope.
func responseFromOutput(requestID string, out []byte, source string) (nativemsg.Response, error) {
	out = bytes.TrimSpace(out)
	var doc json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		return nativemsg.Response{}, &ParseError{Err: err, Output: excerpt(out)}
	}

	if doc[0] == '{' {
		var env struct {
			RequestID string          `json:"requestId"`
			Success   *bool           `json:"success"`
			Data      json.RawMessage `json:"data"`
			Error     string          `json:"error"`
			Timestamp float64         `json:"timestamp"`
			Source    string          `json:"source"`
		}
		if err := json.Unmarshal(doc, &env); err == nil && env.Success != nil {
			resp := nativemsg.Response{
				RequestID: env.RequestID,
				Success:   *env.Success,
				Error:     env.Error,
				Timestamp: int64(env.Timestamp),
				Source:    env.Source,
			}
			if resp.Success && len(env.Data) > 0 && string(env.Data) != "null" {
				resp.Data = env.Data
			}
			if !resp.Success && resp.Error == "" {
				resp.Error = "handler reported failure"
			}
			if resp.RequestID == "" {
				resp.RequestID = requestID
			}
			if resp.Timestamp == 0 {
				resp.Timestamp = nativemsg.Now()
			}
			if resp.Source == "" {
				resp.Source = source
			}
			return resp, nil
		}
	}
	return nativemsg.OK(requestID, doc, source), nil
}

func excerpt(b []byte) string {
	if len(b) > maxOutputExcerpt {
		return string(b[:maxOutputExcerpt]) + "..."
	}
	return string(b)
}

// tailBuffer keeps the last max bytes written to it. Handler stderr is
// only diagnostic, so older output is dropped rather than growing without
// bound.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func (t *tailBuffer) Reset() {
	t.mu.Lock()
	t.buf = t.buf[:0]
	t.mu.Unlock()
}
