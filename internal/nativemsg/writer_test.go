package nativemsg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

func TestReadWrite(t *testing.T) {
	msg := map[string]any{
		"command":   "system_info",
		"requestId": "test-123",
		"query":     "cpu",
	}

	var buf bytes.Buffer
	if err := Write(&buf, msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	result, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if parsed["command"] != "system_info" {
		t.Errorf("Expected command=system_info, got %v", parsed["command"])
	}
	if parsed["requestId"] != "test-123" {
		t.Errorf("Expected requestId=test-123, got %v", parsed["requestId"])
	}
	if _, err := Read(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF on empty input, got %v", err)
	}
}

func TestReadEmptyMessage(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})

	if _, err := Read(&buf); !IsFramingError(err) {
		t.Errorf("Expected framing error for empty message, got %v", err)
	}
}

func TestReadTooLargeMessage(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0x00, 0x00, 0x04}) // 64MB + 1

	_, err := Read(&buf)
	var tl *FrameTooLargeError
	if !errors.As(err, &tl) {
		t.Errorf("Expected FrameTooLargeError, got %v", err)
	}
}

func TestReadTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x05, 0x00, 0x00, 0x00, '{'})

	if _, err := Read(&buf); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected unexpected EOF, got %v", err)
	}
}

func TestWriterConcurrentFramesStayIntact(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := w.WriteMessage(map[string]string{"requestId": fmt.Sprintf("r%d", i)}); err != nil {
				t.Errorf("write %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	r := NewReader(&buf)
	seen := map[string]bool{}
	for {
		msg, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		var m map[string]string
		if err := json.Unmarshal(msg, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		seen[m["requestId"]] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct frames, got %d", n, len(seen))
	}
}

func TestWriterRejectsUnencodable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteMessage(func() {})
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on encoding failure")
	}
	if err := w.WriteRaw([]byte(`{"ok":true}`)); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	msg, err := Read(&buf)
	if err != nil || string(msg) != `{"ok":true}` {
		t.Fatalf("read raw: %q %v", msg, err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriterPropagatesWriteErrors(t *testing.T) {
	w := NewWriter(failingWriter{})
	if err := w.WriteMessage("x"); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected closed pipe, got %v", err)
	}
}
