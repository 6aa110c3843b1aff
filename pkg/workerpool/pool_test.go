package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Submit(t *testing.T) {
	p := New(4)
	defer p.Close()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.True(t, p.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(100), atomic.LoadInt64(&counter))
	assert.LessOrEqual(t, p.Running(), 4)
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	p := New(2)
	var counter int64
	for i := 0; i < 50; i++ {
		p.Submit(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&counter, 1)
		})
	}
	p.Close()
	assert.Equal(t, int64(50), atomic.LoadInt64(&counter))

	assert.False(t, p.Submit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
	p.Close()
}

func TestPool_TrySubmitFullQueue(t *testing.T) {
	p := New(1, WithQueueSize(1))
	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.TrySubmit(func() {
		close(started)
		<-block
	}))
	<-started
	require.True(t, p.TrySubmit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
	close(block)
	p.Close()
}

func TestPool_RecoversPanics(t *testing.T) {
	p := New(1)
	var ran int64
	p.Submit(func() { panic("boom") })
	p.Submit(func() { atomic.AddInt64(&ran, 1) })
	p.Close()

	assert.Equal(t, int64(1), p.Panics())
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestMap_PreservesOrder(t *testing.T) {
	p := New(4)
	defer p.Close()

	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := Map(p, in, func(v int) int { return v * v })
	assert.Equal(t, []int{1, 4, 9, 16, 25, 36, 49, 64}, out)
}
