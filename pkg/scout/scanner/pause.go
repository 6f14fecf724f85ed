package scanner

import (
	"context"
	"sync"
)

// pauser blocks traversal between hold and release.
type pauser struct {
	mu     sync.Mutex
	held   bool
	resume chan struct{}
}

// hold reports whether the pauser was newly held.
func (p *pauser) hold() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.held {
		return false
	}
	p.held = true
	p.resume = make(chan struct{})
	return true
}

// release reports whether a hold was lifted.
func (p *pauser) release() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.held {
		return false
	}
	p.held = false
	close(p.resume)
	return true
}

func (p *pauser) isHeld() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

func (p *pauser) wait(ctx context.Context) error {
	p.mu.Lock()
	if !p.held {
		p.mu.Unlock()
		return nil
	}
	ch := p.resume
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
