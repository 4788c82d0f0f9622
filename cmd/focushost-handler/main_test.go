package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantCode int
		wantOut  bool
		wantErr  string
	}{
		{name: "ping", in: `{"requestId":"1","command":"ping"}`, wantOut: true},
		{name: "system_info", in: `{"requestId":"2","command":"system_info"}`, wantOut: true},
		{name: "unknown command", in: `{"requestId":"3","command":"launch"}`, wantCode: 1, wantErr: "unknown command"},
		{name: "not an object", in: `[1]`, wantCode: 2, wantErr: "JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code := runOnce(context.Background(), strings.NewReader(tt.in), &out, &errOut)
			if code != tt.wantCode {
				t.Fatalf("exit code %d want %d (stderr %q)", code, tt.wantCode, errOut.String())
			}
			if tt.wantOut && !json.Valid(out.Bytes()) {
				t.Fatalf("stdout is not JSON: %q", out.String())
			}
			if !tt.wantOut && out.Len() != 0 {
				t.Fatalf("unexpected stdout: %q", out.String())
			}
			if tt.wantErr != "" && !strings.Contains(errOut.String(), tt.wantErr) {
				t.Fatalf("stderr %q should contain %q", errOut.String(), tt.wantErr)
			}
		})
	}
}
