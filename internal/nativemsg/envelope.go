package nativemsg

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Request is the envelope the extension sends for every command.
type Request struct {
	RequestID string  `json:"requestId"`
	Command   string  `json:"command"`
	Query     string  `json:"query,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`

	// raw holds the message as received so fields unknown to the host
	// still reach the downstream handler.
	raw json.RawMessage
}

// ParseRequest decodes a message into a Request. The message must be a
// JSON object.
func ParseRequest(msg json.RawMessage) (Request, error) {
	var req Request
	if len(msg) == 0 || firstNonSpace(msg) != '{' {
		return req, errors.New("request must be a JSON object")
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	req.raw = msg
	return req, nil
}

// Payload returns the JSON forwarded to handlers: the original message
// when the request was parsed, or the marshalled fields otherwise.
func (r Request) Payload() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(r)
}

// Response is the envelope returned for every request. Exactly one of
// Data and Error is meaningful, depending on Success.
type Response struct {
	RequestID string          `json:"requestId,omitempty"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source,omitempty"`
}

var now = time.Now

// Now returns the envelope timestamp for the current time, in
// milliseconds since the Unix epoch.
func Now() int64 { return now().UnixMilli() }

// OK builds a success envelope carrying data.
func OK(requestID string, data json.RawMessage, source string) Response {
	return Response{
		RequestID: requestID,
		Success:   true,
		Data:      data,
		Timestamp: Now(),
		Source:    source,
	}
}

// Fail builds an error envelope from err.
func Fail(requestID string, err error, source string) Response {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Response{
		RequestID: requestID,
		Success:   false,
		Error:     msg,
		Timestamp: Now(),
		Source:    source,
	}
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return c
		}
	}
	return 0
}
