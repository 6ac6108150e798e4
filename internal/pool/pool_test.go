package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainFactory(id int) *Caller {
	return &Caller{ID: id}
}

func TestNewRejectsBadBounds(t *testing.T) {
	_, err := New(5, 2, plainFactory)
	assert.Error(t, err)
	_, err = New(0, 0, plainFactory)
	assert.Error(t, err)
}

func TestPreAllocation(t *testing.T) {
	p, err := New(3, 5, plainFactory)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Size())
	assert.Equal(t, 3, p.Idle())
	assert.Equal(t, 0, p.Busy())
	assert.Equal(t, 5, p.Max())
}

func TestAcquireGrowsThenFailsFast(t *testing.T) {
	p, err := New(1, 3, plainFactory)
	require.NoError(t, err)

	var got []*Caller
	for i := 0; i < 3; i++ {
		c, err := p.Acquire()
		require.NoError(t, err)
		assert.Equal(t, StateRunning, c.State())
		got = append(got, c)
	}
	assert.Equal(t, 3, p.Size())

	start := time.Now()
	_, err = p.Acquire()
	assert.ErrorIs(t, err, ErrBusy)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, p.Release(got[1]))
	c, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, got[1], c)
	assert.Equal(t, 3, p.Size())
}

func TestReleaseTwiceFails(t *testing.T) {
	p, err := New(1, 1, plainFactory)
	require.NoError(t, err)
	c, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(c))
	assert.ErrorIs(t, p.Release(c), ErrNotRunning)
	assert.Equal(t, 1, p.Idle())
}

func TestCallerNeverSharedConcurrently(t *testing.T) {
	p, err := New(4, 8, plainFactory)
	require.NoError(t, err)

	inUse := make([]atomic.Int32, 8)
	var violations, acquired, busy atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c, err := p.Acquire()
				if err != nil {
					busy.Add(1)
					continue
				}
				acquired.Add(1)
				if inUse[c.ID].Add(1) != 1 {
					violations.Add(1)
				}
				time.Sleep(time.Microsecond)
				inUse[c.ID].Add(-1)
				if err := p.Release(c); err != nil {
					violations.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, violations.Load())
	assert.Equal(t, int64(32*500), acquired.Load()+busy.Load())
	assert.LessOrEqual(t, p.Size(), 8)
	assert.Equal(t, 0, p.Busy())
}

func TestClose(t *testing.T) {
	p, err := New(2, 2, plainFactory)
	require.NoError(t, err)
	running, err := p.Acquire()
	require.NoError(t, err)

	p.Close()
	_, err = p.Acquire()
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, p.Release(running))
	assert.Equal(t, StateStopped, running.State())
	assert.Equal(t, 0, p.Idle())
}

func TestHTTPCallerOwnsTransport(t *testing.T) {
	a := NewHTTPCaller(0, ClientOptions{Timeout: time.Second})
	b := NewHTTPCaller(1, ClientOptions{Timeout: time.Second, InsecureSkipVerify: true})
	assert.NotSame(t, a.Client.Transport, b.Client.Transport)
	assert.Equal(t, time.Second, a.Client.Timeout)
	assert.Equal(t, uint64(0), a.NextIteration())
	assert.Equal(t, uint64(1), a.NextIteration())
	assert.Equal(t, uint64(2), a.Iterations())
}
