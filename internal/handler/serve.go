package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/gaspardpetit/focushost/internal/invoker"
	"github.com/gaspardpetit/focushost/internal/logx"
	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

// Serve answers framed calls from the host until r ends. Calls run
// concurrently; each reply carries the id of its call.
func Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := nativemsg.NewReader(r)
	writer := nativemsg.NewWriter(w)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		msg, err := reader.Next()
		if err != nil {
			if nativemsg.IsFramingError(err) {
				logx.Log.Warn().Err(err).Msg("dropping malformed call")
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var c invoker.Call
		if err := json.Unmarshal(msg, &c); err != nil || c.ID == "" {
			logx.Log.Warn().Msg("dropping call without id")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := answer(ctx, c)
			if err := writer.WriteMessage(reply); err != nil {
				logx.Log.Error().Err(err).Str("id", c.ID).Msg("write reply")
			}
		}()
	}
}

func answer(ctx context.Context, c invoker.Call) invoker.Reply {
	req, err := nativemsg.ParseRequest(c.Request)
	if err != nil {
		return invoker.Reply{ID: c.ID, Error: err.Error()}
	}
	data, err := Run(ctx, req)
	if err != nil {
		return invoker.Reply{ID: c.ID, Error: err.Error()}
	}
	return invoker.Reply{ID: c.ID, Result: data}
}
