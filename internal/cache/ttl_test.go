package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := newClock()
	c := NewTTLCache[string, int](time.Minute, WithClock(clock.Now))

	c.Set("FPT", 1)
	v, ok := c.Get("FPT")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("FPT")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("FPT")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_DeleteAndPurge(t *testing.T) {
	clock := newClock()
	c := NewTTLCache[string, int](time.Minute, WithClock(clock.Now))

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Len())

	clock.Advance(30 * time.Second)
	c.Set("c", 3)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("c")
	assert.True(t, ok)
}

func TestTTLCache_ZeroTTLNeverStores(t *testing.T) {
	c := NewTTLCache[string, int](0)
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_GetOrCompute(t *testing.T) {
	c := NewTTLCache[string, string](time.Minute)
	calls := 0
	fn := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	v, err := c.GetOrCompute(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = c.GetOrCompute(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)
}

func TestTTLCache_GetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	boom := errors.New("upstream down")

	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestTTLCache_GetOrComputeSingleFlight(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)

	var calls int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	const callers = 8
	var started, wg sync.WaitGroup
	results := make([]int, callers)
	started.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			v, err := c.GetOrCompute(context.Background(), "VNM", fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	started.Wait()
	// give every goroutine time to join the flight
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestTTLCache_GetOrComputeHonoursContext(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)
	_, err := c.GetOrCompute(ctx, "k", func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTTLCache_GetOrComputeSurvivesFirstCallerCancel(t *testing.T) {
	c := NewTTLCache[string, float64](time.Minute)

	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (float64, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-release:
			return 104.5, nil
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctxA, "FPT", fn)
		errA <- err
	}()

	<-entered
	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	type outcome struct {
		v   float64
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), "FPT", fn)
		resB <- outcome{v, err}
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 104.5, b.v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	v, ok := c.Get("FPT")
	assert.True(t, ok)
	assert.Equal(t, 104.5, v)
}

func TestTTLCache_GetOrComputeTimeout(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute, WithComputeTimeout(20*time.Millisecond))

	_, err := c.GetOrCompute(context.Background(), "VNM", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := c.Get("VNM")
	assert.False(t, ok)
}
