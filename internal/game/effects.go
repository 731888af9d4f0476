package game

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const effectQueueSize = 256

type effect struct {
	op  string
	run func(ctx context.Context) error
}

// effectQueue runs persistence calls for one Game in the order they were
// enqueued, on a single worker goroutine. The Game never waits for them.
//
// enqueue and close are called with Game.mu held.
type effectQueue struct {
	log     *slog.Logger
	timeout time.Duration

	ch      chan effect
	pending sync.WaitGroup
	closed  bool
}

func newEffectQueue(log *slog.Logger, timeout time.Duration) *effectQueue {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	q := &effectQueue{
		log:     log,
		timeout: timeout,
		ch:      make(chan effect, effectQueueSize),
	}
	go q.loop()
	return q
}

func (q *effectQueue) enqueue(op string, run func(ctx context.Context) error) {
	if q.closed {
		q.log.Warn("persistence call after shutdown dropped", "op", op)
		return
	}
	q.pending.Add(1)
	select {
	case q.ch <- effect{op: op, run: run}:
	default:
		// очередь забита (БД лежит) — best effort, выкидываем
		q.pending.Done()
		q.log.Warn("persistence queue full, call dropped", "op", op)
	}
}

func (q *effectQueue) loop() {
	for e := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := e.run(ctx); err != nil {
			q.log.Warn("persistence call failed", "op", e.op, "err", err)
		}
		cancel()
		q.pending.Done()
	}
}

// close stops accepting work; already queued calls still run.
func (q *effectQueue) close() {
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// wait blocks until every queued call has finished.
func (q *effectQueue) wait() {
	q.pending.Wait()
}
