// Package main provides chapterctl, the command line client for a Chapterdesk server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chapterdesk/chapterdesk-server/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
