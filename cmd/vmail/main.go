package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vmail/backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}
