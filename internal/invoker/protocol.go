package invoker

import "encoding/json"

// Call is the frame sent to a persistent worker for one request. Request
// is the request envelope exactly as the browser sent it.
type Call struct {
	ID      string          `json:"id"`
	Request json.RawMessage `json:"request"`
}

// Reply is the frame a persistent worker returns for a Call. Result is
// interpreted like the stdout of a per-request handler; a non-empty Error
// turns into an error envelope.
type Reply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
