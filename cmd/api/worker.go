package main

import (
	"context"

	"membership/internal/logger"
)

// runInProcess starts run in the background. The returned stop cancels it
// and blocks until run has returned.
func runInProcess(ctx context.Context, run func(context.Context) error, log *logger.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := run(ctx); err != nil {
			log.Error("API: in-process worker stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
