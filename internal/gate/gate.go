// Package gate implements a single reusable cooperative-cancellation
// primitive: a broadcastable, re-armable gate that worker loops can sleep
// on and that close()/identify() can signal, replacing the source's mix of
// socket-level shutdown and condition-variable signalling with one
// mechanism observed uniformly by timed waits and (via context) blocking
// reads (spec.md §9).
package gate

import (
	"sync"
	"time"
)

// Gate is a broadcast signal that can be waited on repeatedly. Each
// Broadcast call wakes every current waiter and re-arms the gate for the
// next round, so the same Gate can be reused across many identify() calls
// over a client's lifetime.
type Gate struct {
	mu sync.Mutex
	ch chan struct{}
}

// New creates an armed Gate.
func New() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// C returns the current signal channel; it is closed on the next
// Broadcast. Callers should re-fetch C() after observing a close, since the
// Gate re-arms with a fresh channel.
func (g *Gate) C() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

// Broadcast wakes every goroutine currently waiting on C(), then re-arms
// the gate.
func (g *Gate) Broadcast() {
	g.mu.Lock()
	close(g.ch)
	g.ch = make(chan struct{})
	g.mu.Unlock()
}

// Wait blocks until either d elapses or the gate is broadcast, whichever
// comes first. It returns true if woken by a broadcast.
func (g *Gate) Wait(d time.Duration) (woken bool) {
	ch := g.C()
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
