package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/gaspardpetit/focushost/internal/invoker"
	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

func TestServe(t *testing.T) {
	var in bytes.Buffer
	w := nativemsg.NewWriter(&in)
	calls := []invoker.Call{
		{ID: "a", Request: json.RawMessage(`{"requestId":"1","command":"ping"}`)},
		{ID: "b", Request: json.RawMessage(`{"requestId":"2","command":"nope"}`)},
		{ID: "c", Request: json.RawMessage(`[1]`)},
	}
	for _, c := range calls {
		if err := w.WriteMessage(c); err != nil {
			t.Fatalf("write call: %v", err)
		}
	}
	// A call without an id is dropped.
	if err := w.WriteMessage(invoker.Call{Request: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("write call: %v", err)
	}

	var out bytes.Buffer
	if err := Serve(context.Background(), &in, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	replies := map[string]invoker.Reply{}
	r := nativemsg.NewReader(&out)
	for {
		msg, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read reply: %v", err)
		}
		var reply invoker.Reply
		if err := json.Unmarshal(msg, &reply); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		replies[reply.ID] = reply
	}
	if len(replies) != 3 {
		t.Fatalf("expected 3 replies, got %v", replies)
	}
	if replies["a"].Error != "" || len(replies["a"].Result) == 0 {
		t.Fatalf("ping reply: %+v", replies["a"])
	}
	if replies["b"].Error == "" || replies["c"].Error == "" {
		t.Fatalf("failing calls should carry errors: %+v %+v", replies["b"], replies["c"])
	}
}
