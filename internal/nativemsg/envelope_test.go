package nativemsg

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseRequestKeepsUnknownFields(t *testing.T) {
	raw := json.RawMessage(`{"requestId":"t1","command":"focus_start","query":"q","timestamp":1700000000000,"minutes":25}`)
	req, err := ParseRequest(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.RequestID != "t1" || req.Command != "focus_start" || req.Query != "q" || req.Timestamp != 1700000000000 {
		t.Fatalf("unexpected request: %+v", req)
	}
	payload, err := req.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if m["minutes"] != 25.0 {
		t.Fatalf("unknown field lost: %v", m)
	}
}

func TestParseRequestRejectsNonObjects(t *testing.T) {
	for _, in := range []string{`[]`, `"cmd"`, `42`, `null`, ``, `{"requestId":5}`} {
		if _, err := ParseRequest(json.RawMessage(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestRequestPayloadWithoutRaw(t *testing.T) {
	req := Request{RequestID: "r", Command: "ping"}
	payload, err := req.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if string(payload) != `{"requestId":"r","command":"ping"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestResponseEnvelopes(t *testing.T) {
	now = func() time.Time { return time.UnixMilli(1234) }
	defer func() { now = time.Now }()

	ok := OK("t1", json.RawMessage(`{"platform":"x"}`), "handler")
	b, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"requestId":"t1","success":true,"data":{"platform":"x"},"timestamp":1234,"source":"handler"}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}

	fail := Fail("", errors.New("boom"), "")
	b, _ = json.Marshal(fail)
	if string(b) != `{"success":false,"error":"boom","timestamp":1234}` {
		t.Fatalf("unexpected failure envelope: %s", b)
	}
	if Fail("x", nil, "").Error != "unknown error" {
		t.Fatalf("nil error should still produce a message")
	}
}
