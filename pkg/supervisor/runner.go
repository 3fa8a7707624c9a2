package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/core-tools/hsu-micromanage/pkg/logging"
	"github.com/core-tools/hsu-micromanage/pkg/metrics"
)

const DefaultShutdownTimeout = 10 * time.Second

type RunnerOptions struct {
	// ShutdownTimeout bounds the wait for processes to exit after KillAll.
	ShutdownTimeout time.Duration
	Metrics         *metrics.Metrics
}

// RunHeadless runs every process without a terminal UI. It returns after
// SIGINT/SIGTERM, when ctx ends, or when every process has exited on its
// own, interrupting whatever is still running on the way out.
func RunHeadless(ctx context.Context, sup *Supervisor, options RunnerOptions, logger logging.Logger) error {
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = DefaultShutdownTimeout
	}

	logger.Infof("Headless runner starting, processes: %d", sup.Len())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	if err := sup.RunAll(); err != nil {
		// Per-process failures are already logged; keep the others running.
		logger.Warnf("Some processes failed to start: %v", err)
	}

	allExited := make(chan struct{})
	waitCtx, cancelWait := context.WithCancel(context.Background())
	defer cancelWait()
	go func() {
		if sup.WaitAll(waitCtx) == nil {
			close(allExited)
		}
	}()

	select {
	case receivedSignal := <-sig:
		logger.Infof("Headless runner received signal: %v", receivedSignal)
	case <-ctx.Done():
		logger.Infof("Headless runner context done: %v", ctx.Err())
	case <-allExited:
		logger.Infof("All processes exited")
	}

	if err := sup.KillAll(); err != nil {
		logger.Errorf("Failed to interrupt some processes: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), options.ShutdownTimeout)
	defer cancel()
	if err := sup.WaitAll(shutdownCtx); err != nil {
		logger.Warnf("Processes still running after %v, giving up waiting", options.ShutdownTimeout)
	}

	for _, line := range sup.Describe() {
		logger.Infof("Final state, %s", line)
	}
	if summary, err := options.Metrics.Summary(); err == nil && len(summary) > 0 {
		logger.Infof("Totals: %s", metrics.FormatSummary(summary))
	}

	logger.Infof("Headless runner stopped")
	return nil
}
