// Package event implements a broadcast channel that many goroutines can wait
// on, each for the payload that answers its own question.
//
// Every published payload gets a generation number. A waiter remembers the
// last generation it looked at and, once woken, checks every payload
// published since then. Two back to back publishes therefore never hide a
// payload from a waiter, as long as it is still in the history ring.
package event

import (
	"context"
	"sync"
)

// DefaultHistory is the number of payloads a channel keeps for waiters that
// have not looked at them yet.
const DefaultHistory = 256

type entry[T any] struct {
	gen     uint64
	payload T
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Channel broadcasts payloads of type T to waiters and subscribers.
//
// The zero value is not usable, create channels with New.
type Channel[T any] struct {
	mu sync.Mutex

	// gen is the generation of the most recently published payload, 0 means
	// nothing has been published yet.
	gen uint64

	// history is a ring buffer of the last len(history) payloads
	history []entry[T]

	// wake is closed and replaced on every publish
	wake chan struct{}

	subMu  sync.Mutex
	subID  uint64
	subs   []subscriber[T]
	notify sync.Mutex
}

// New creates a channel that remembers up to history payloads. A history
// below one uses DefaultHistory.
func New[T any](history int) *Channel[T] {
	if history < 1 {
		history = DefaultHistory
	}

	return &Channel[T]{
		history: make([]entry[T], history),
		wake:    make(chan struct{}),
	}
}

// Generation returns the generation of the latest payload. Pass it to
// WaitSince to only consider payloads published afterwards.
func (c *Channel[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gen
}

// Publish makes payload the latest value, wakes every waiter and then calls
// every subscriber, in subscription order, before returning.
func (c *Channel[T]) Publish(payload T) {
	c.mu.Lock()
	c.gen++
	c.history[c.gen%uint64(len(c.history))] = entry[T]{gen: c.gen, payload: payload}

	wake := c.wake
	c.wake = make(chan struct{})
	c.mu.Unlock()

	close(wake)

	// Subscribers of one channel see payloads in publish order
	c.notify.Lock()
	defer c.notify.Unlock()

	for _, sub := range c.subscribers() {
		sub.fn(payload)
	}
}

// WaitFor blocks until a payload published after the call satisfies match.
func (c *Channel[T]) WaitFor(ctx context.Context, match func(T) bool) (T, error) {
	return c.WaitSince(ctx, c.Generation(), match)
}

// WaitSince blocks until a payload published after generation gen satisfies
// match, and returns it. Payloads that do not match are skipped.
//
// If ctx ends first, its cause is returned.
func (c *Channel[T]) WaitSince(ctx context.Context, gen uint64, match func(T) bool) (T, error) {
	seen := gen

	for {
		c.mu.Lock()
		oldest := c.oldest()
		if seen+1 < oldest {
			// We fell behind the ring, skip what we can no longer see
			seen = oldest - 1
		}

		for g := seen + 1; g <= c.gen; g++ {
			e := c.history[g%uint64(len(c.history))]
			seen = g

			if match(e.payload) {
				c.mu.Unlock()
				return e.payload, nil
			}
		}

		wake := c.wake
		c.mu.Unlock()

		select {
		case <-wake:

		case <-ctx.Done():
			var zero T
			return zero, context.Cause(ctx)
		}
	}
}

// Subscribe registers fn to be called with every future payload. The
// returned func removes the subscription.
func (c *Channel[T]) Subscribe(fn func(T)) (cancel func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.subID++
	id := c.subID
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()

		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Channel[T]) subscribers() []subscriber[T] {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	return c.subs
}

// oldest returns the oldest generation still in the ring. c.mu must be held.
func (c *Channel[T]) oldest() uint64 {
	size := uint64(len(c.history))
	if c.gen < size {
		return 1
	}

	return c.gen - size + 1
}
