package pool

import (
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"
)

// State of a virtual caller.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Caller is one reusable execution slot. It owns its HTTP client so
// keep-alive connections survive between iterations on the same caller.
type Caller struct {
	ID     int
	Client *http.Client

	state      atomic.Int32
	iterations atomic.Uint64
}

func (c *Caller) State() State {
	return State(c.state.Load())
}

// NextIteration returns the caller-local iteration number, starting at 0.
func (c *Caller) NextIteration() uint64 {
	return c.iterations.Add(1) - 1
}

func (c *Caller) Iterations() uint64 {
	return c.iterations.Load()
}

// ClientOptions shape the per-caller transport.
type ClientOptions struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewHTTPCaller builds a caller with a private transport.
func NewHTTPCaller(id int, opts ClientOptions) *Caller {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 4
	t.MaxIdleConnsPerHost = 4
	if opts.InsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Caller{
		ID: id,
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: t,
		},
	}
}

// close releases any warm connections the caller holds.
func (c *Caller) close() {
	c.state.Store(int32(StateStopped))
	if c.Client != nil {
		c.Client.CloseIdleConnections()
	}
}
