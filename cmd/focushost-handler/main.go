package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaspardpetit/focushost/internal/handler"
	"github.com/gaspardpetit/focushost/internal/logx"
	"github.com/gaspardpetit/focushost/internal/nativemsg"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	persistent := flag.Bool("persistent", false, "serve framed calls on stdin/stdout until stdin closes")
	flag.Parse()
	if *showVersion {
		fmt.Printf("focushost-handler version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *persistent {
		if err := handler.Serve(ctx, os.Stdin, os.Stdout); err != nil {
			logx.Log.Fatal().Err(err).Msg("serve")
		}
		return
	}
	os.Exit(runOnce(ctx, os.Stdin, os.Stdout, os.Stderr))
}

// runOnce answers the single request on in and returns the exit code.
func runOnce(ctx context.Context, in io.Reader, out, errOut io.Writer) int {
	b, err := io.ReadAll(in)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "read request: %v\n", err)
		return 2
	}
	req, err := nativemsg.ParseRequest(b)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	data, err := handler.Run(ctx, req)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "%v\n", err)
		if errors.Is(err, handler.ErrUnknownCommand) {
			return 1
		}
		return 3
	}
	if _, err := out.Write(data); err != nil {
		_, _ = fmt.Fprintf(errOut, "write result: %v\n", err)
		return 2
	}
	return 0
}
