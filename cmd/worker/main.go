package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/bonusfinder-backend/internal/app"
)

// The heavy worker drains the Redis job queue. It serves no HTTP and runs no
// scheduler; the API process owns both.
func main() {
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init worker: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	consumer, err := a.HeavyConsumer()
	if err != nil {
		a.Log.Error("Heavy worker unavailable", "error", err)
		a.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Log.Error("Heavy worker stopped", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Log.Info("Heavy worker stopped")
}
