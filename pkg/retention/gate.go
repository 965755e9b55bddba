package retention

import (
	"context"
	"sync"
)

// Gate provides cooperative pause/resume for a running engine. The engine
// waits on the gate between records, so pausing takes effect at the next
// record boundary and never interrupts a backend call mid-flight.
//
// Thread Safety: all methods are safe for concurrent use.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewGate creates a gate in the open (running) state.
func NewGate() *Gate {
	return &Gate{}
}

// Pause closes the gate. Idempotent.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.resume = make(chan struct{})
	}
}

// Resume reopens the gate, releasing any goroutine blocked in Wait.
// Idempotent.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		close(g.resume)
	}
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused. It returns nil once the gate is
// open, or the context error if ctx is cancelled while waiting.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		paused := g.paused
		resume := g.resume
		g.mu.Unlock()

		if !paused {
			return nil
		}
		select {
		case <-resume:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
