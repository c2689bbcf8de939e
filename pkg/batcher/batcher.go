// Package batcher groups items and hands them to a flush function by size or age.
package batcher

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("batcher: closed")

// FlushFunc writes one batch. It receives the context the batcher was created with.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// Batcher collects items and flushes them based on size or time thresholds. Flushes are
// serialized, so the flush function never runs concurrently with itself.
type Batcher[T any] struct {
	ctx       context.Context
	mu        sync.Mutex
	flushMu   sync.Mutex
	buffer    []T
	maxSize   int
	interval  time.Duration
	flushFn   FlushFunc[T]
	stop      chan struct{}
	closeOnce sync.Once
	closed    bool
	wg        sync.WaitGroup
	lastError error
	flushed   int
}

// New creates a batcher and starts its ticker. Non-positive sizes flush every item and a
// non-positive interval defaults to one second.
func New[T any](ctx context.Context, maxSize int, interval time.Duration, flushFn FlushFunc[T]) *Batcher[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	b := &Batcher[T]{
		ctx:      ctx,
		maxSize:  maxSize,
		interval: interval,
		flushFn:  flushFn,
		stop:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.loop()
	return b
}

// Add queues an item. If the size threshold is met it flushes immediately and returns the
// flush error.
func (b *Batcher[T]) Add(item T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.buffer = append(b.buffer, item)
	var batch []T
	if len(b.buffer) >= b.maxSize {
		batch = b.detach()
	}
	b.mu.Unlock()
	return b.runFlush(batch)
}

// Flush forces a flush of the accumulated items.
func (b *Batcher[T]) Flush() error {
	b.mu.Lock()
	batch := b.detach()
	b.mu.Unlock()
	return b.runFlush(batch)
}

// Close stops the ticker and flushes what is left. Later calls are no-ops.
func (b *Batcher[T]) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.stop)
		b.wg.Wait()
		err = b.Flush()
	})
	return err
}

// Pending reports how many items wait for the next flush.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Flushed reports how many items were handed to the flush function successfully.
func (b *Batcher[T]) Flushed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}

// LastError returns the last flush error encountered by the background ticker.
func (b *Batcher[T]) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

func (b *Batcher[T]) loop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.mu.Lock()
				b.lastError = err
				b.mu.Unlock()
			}
		case <-b.stop:
			return
		}
	}
}

func (b *Batcher[T]) detach() []T {
	if len(b.buffer) == 0 {
		return nil
	}
	batch := make([]T, len(b.buffer))
	copy(batch, b.buffer)
	b.buffer = b.buffer[:0]
	return batch
}

func (b *Batcher[T]) runFlush(batch []T) error {
	if len(batch) == 0 {
		return nil
	}
	if b.flushFn == nil {
		return errors.New("batcher: no flush function configured")
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	if err := b.flushFn(b.ctx, batch); err != nil {
		return err
	}
	b.mu.Lock()
	b.flushed += len(batch)
	b.mu.Unlock()
	return nil
}
