// Package signal cancels the root context on SIGINT/SIGTERM and lets short
// critical sections, such as cache migrations, defer that cancellation.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mu         sync.Mutex
	blockCount int
	// deferred holds cancel funcs for signals that arrived while blocked.
	deferred []context.CancelFunc
)

// WithSignalCancel returns a context that is cancelled on SIGINT or SIGTERM.
// Call the returned cancel function when done.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			mu.Lock()
			if blockCount > 0 {
				deferred = append(deferred, cancel)
				mu.Unlock()
				return
			}
			mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// BlockSignals postpones signal cancellation until the matching
// UnblockSignals. Calls nest.
func BlockSignals() {
	mu.Lock()
	defer mu.Unlock()
	blockCount++
}

// UnblockSignals ends a BlockSignals section. When the outermost section
// ends, cancellations deferred by a received signal run.
func UnblockSignals() {
	mu.Lock()
	if blockCount > 0 {
		blockCount--
	}
	var pending []context.CancelFunc
	if blockCount == 0 {
		pending, deferred = deferred, nil
	}
	mu.Unlock()

	for _, cancel := range pending {
		cancel()
	}
}
