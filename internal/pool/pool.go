package pool

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBusy is returned by Acquire when every caller is running and the pool is at its maximum size.
	ErrBusy = errors.New("pool: all virtual callers busy")
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("pool: closed")
	// ErrNotRunning is returned when releasing a caller that was not acquired.
	ErrNotRunning = errors.New("pool: caller not running")
)

// Factory creates the caller with the given id.
type Factory func(id int) *Caller

// Pool is a bounded set of reusable callers. Acquire never blocks.
type Pool struct {
	mu     sync.Mutex
	idle   []*Caller
	all    []*Caller
	busy   int
	max    int
	closed bool

	newCaller Factory
}

// New pre-allocates preAllocated callers and allows growth up to max.
func New(preAllocated, max int, factory Factory) (*Pool, error) {
	if preAllocated < 0 || max < 1 || preAllocated > max {
		return nil, fmt.Errorf("pool: invalid bounds preAllocated=%d max=%d", preAllocated, max)
	}
	p := &Pool{
		idle:      make([]*Caller, 0, max),
		all:       make([]*Caller, 0, max),
		max:       max,
		newCaller: factory,
	}
	for i := 0; i < preAllocated; i++ {
		c := factory(i)
		p.all = append(p.all, c)
		p.idle = append(p.idle, c)
	}
	return p, nil
}

// Acquire hands out an idle caller, growing the pool by one when none is
// idle and the pool is below max. It fails fast with ErrBusy otherwise.
func (p *Pool) Acquire() (*Caller, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	var c *Caller
	if n := len(p.idle); n > 0 {
		c = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else if len(p.all) < p.max {
		c = p.newCaller(len(p.all))
		p.all = append(p.all, c)
	} else {
		return nil, ErrBusy
	}

	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		// an idle-list entry that is not idle would mean a double release
		panic(fmt.Sprintf("pool: caller %d handed out in state %s", c.ID, c.State()))
	}
	p.busy++
	return c, nil
}

// Release returns c to the idle set, keeping its warm connections.
func (p *Pool) Release(c *Caller) error {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateIdle)) {
		return fmt.Errorf("release caller %d: %w", c.ID, ErrNotRunning)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy--
	if p.closed {
		c.close()
		return nil
	}
	p.idle = append(p.idle, c)
	return nil
}

// Size is the number of callers created so far.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Busy is the number of callers currently running an iteration.
func (p *Pool) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func (p *Pool) Max() int {
	return p.max
}

// Close stops idle callers now and running callers when they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, c := range p.idle {
		c.close()
	}
	p.idle = nil
}
