package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crisisbench/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(cli.Main(ctx))
}
