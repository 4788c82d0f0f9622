// Package handler implements the commands of the reference downstream
// handler and the worker side of the persistent protocol.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gaspardpetit/focushost/internal/nativemsg"
	"github.com/gaspardpetit/focushost/internal/sysinfo"
)

// ErrUnknownCommand is returned for commands the handler does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Func produces the data of one command.
type Func func(ctx context.Context, req nativemsg.Request) (any, error)

var commands = map[string]Func{
	"ping":        ping,
	"echo":        echo,
	"system_info": systemInfo,
	"time":        clock,
}

// Commands returns the names of the supported commands.
func Commands() []string {
	out := make([]string, 0, len(commands))
	for name := range commands {
		out = append(out, name)
	}
	return out
}

// Run executes req and returns the JSON document to print.
func Run(ctx context.Context, req nativemsg.Request) (json.RawMessage, error) {
	fn, ok := commands[req.Command]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, req.Command)
	}
	v, err := fn(ctx, req)
	if err != nil {
		return nil, err
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

func ping(context.Context, nativemsg.Request) (any, error) {
	return map[string]any{"pong": true, "pid": os.Getpid()}, nil
}

// echo returns the request exactly as received.
func echo(_ context.Context, req nativemsg.Request) (any, error) {
	b, err := req.Payload()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func systemInfo(ctx context.Context, _ nativemsg.Request) (any, error) {
	return sysinfo.Collect(ctx), nil
}

func clock(context.Context, nativemsg.Request) (any, error) {
	t := time.Now()
	zone, offset := t.Zone()
	return map[string]any{
		"unix_ms":        t.UnixMilli(),
		"rfc3339":        t.Format(time.RFC3339Nano),
		"timezone":       zone,
		"offset_seconds": offset,
	}, nil
}
