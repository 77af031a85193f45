package notifications

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type batch struct {
	ctx  context.Context
	msgs []Message
}

// Async hands notifications to a small pool of background senders so request handlers do not
// wait on persistence, pub/sub and email queueing. A full buffer delivers inline instead of dropping.
type Async struct {
	next    Notifier
	batches chan batch
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	logger  *zap.Logger
}

// NewAsync starts workers goroutines delivering through next.
func NewAsync(next Notifier, buffer, workers int, logger *zap.Logger) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer < 0 {
		buffer = 0
	}
	if workers < 1 {
		workers = 1
	}
	a := &Async{next: next, batches: make(chan batch, buffer), logger: logger}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.run()
	}
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for b := range a.batches {
		a.next.Notify(b.ctx, b.msgs...)
	}
}

// Notify implements Notifier. The request context's values are kept, its cancellation is not.
func (a *Async) Notify(ctx context.Context, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	b := batch{ctx: context.WithoutCancel(ctx), msgs: append([]Message(nil), msgs...)}

	a.mu.RLock()
	if !a.closed {
		select {
		case a.batches <- b:
			a.mu.RUnlock()
			return
		default:
		}
	}
	a.mu.RUnlock()

	a.logger.Debug("notification buffer unavailable, delivering inline", zap.Int("count", len(msgs)))
	a.next.Notify(b.ctx, b.msgs...)
}

// Close stops accepting batches and waits until the queued ones are delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.batches)
	a.mu.Unlock()
	a.wg.Wait()
}
