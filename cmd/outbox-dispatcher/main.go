// outbox-dispatcher drains the posting-event outbox into Pub/Sub. Run one
// instance per deployment; a second instance is safe (claims are worker
// scoped) but wasteful.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... PUBSUB_PROJECT_ID=... go run ./cmd/outbox-dispatcher
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/workflow"
)

func main() {
	batchSize := flag.Int("batch-size", 50, "rows claimed per poll")
	pollMs := flag.Int("poll-ms", 500, "poll interval in milliseconds")
	maxAttempts := flag.Int("max-attempts", 20, "publish attempts before a row goes DEAD")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := workflow.NewOutboxDispatcher(logger)
	dispatcher.BatchSize = *batchSize
	dispatcher.PollInterval = time.Duration(*pollMs) * time.Millisecond
	dispatcher.MaxAttempts = *maxAttempts

	logger.WithField("field", "outbox-dispatcher").Info("dispatcher " + dispatcher.DispatcherID + " started")
	dispatcher.Run(ctx)
	logger.WithField("field", "outbox-dispatcher").Info("dispatcher stopped")
}
