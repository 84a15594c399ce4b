package pools

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadPool_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		pool, err := NewThreadPool(size)
		assert.ErrorIs(t, err, ErrInvalidPoolSize)
		assert.Nil(t, pool)
	}
}

func TestThreadPool_StartsAllWorkers(t *testing.T) {
	pool, err := NewThreadPool(3)
	require.NoError(t, err)
	defer pool.Close()

	stats := pool.Stats()
	assert.Equal(t, 3, pool.Size())
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 3, stats.LiveWorkers)
}

func TestThreadPool_EachJobRunsExactlyOnce(t *testing.T) {
	const jobs = 500

	for _, size := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("workers=%d", size), func(t *testing.T) {
			pool, err := NewThreadPool(size, WithQueueSize(16))
			require.NoError(t, err)

			var runs [jobs]atomic.Int32
			for i := 0; i < jobs; i++ {
				i := i
				require.NoError(t, pool.Execute(func() {
					runs[i].Add(1)
				}))
			}
			pool.Close()

			for i := range runs {
				assert.EqualValues(t, 1, runs[i].Load(), "job %d", i)
			}
			stats := pool.Stats()
			assert.EqualValues(t, jobs, stats.Submitted)
			assert.EqualValues(t, jobs, stats.Completed)
			assert.Zero(t, stats.Pending)
		})
	}
}

func TestThreadPool_ConcurrentProducers(t *testing.T) {
	pool, err := NewThreadPool(4)
	require.NoError(t, err)

	var counter atomic.Int64
	var producers sync.WaitGroup
	for p := 0; p < 8; p++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, pool.Execute(func() { counter.Add(1) }))
			}
		}()
	}
	producers.Wait()
	pool.Close()

	assert.EqualValues(t, 800, counter.Load())
}

func TestThreadPool_FIFOWithSingleWorker(t *testing.T) {
	pool, err := NewThreadPool(1)
	require.NoError(t, err)

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, pool.Execute(func() {
			order = append(order, i)
		}))
	}
	pool.Close()

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestThreadPool_ExecuteAfterClose(t *testing.T) {
	pool, err := NewThreadPool(2)
	require.NoError(t, err)
	pool.Close()

	var ran atomic.Bool
	err = pool.Execute(func() { ran.Store(true) })
	assert.ErrorIs(t, err, ErrPoolClosed)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestThreadPool_NilJob(t *testing.T) {
	pool, err := NewThreadPool(1)
	require.NoError(t, err)
	defer pool.Close()

	assert.ErrorIs(t, pool.Execute(nil), ErrNilJob)
}

func TestThreadPool_CloseDrainsAndJoins(t *testing.T) {
	pool, err := NewThreadPool(2)
	require.NoError(t, err)

	var finished atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Execute(func() {
			time.Sleep(10 * time.Millisecond)
			finished.Add(1)
		}))
	}
	pool.Close()

	assert.EqualValues(t, 10, finished.Load())
	assert.Zero(t, pool.Stats().LiveWorkers)

	// A second Close returns immediately.
	pool.Close()
}

func TestThreadPool_InFlightJobFinishes(t *testing.T) {
	pool, err := NewThreadPool(1)
	require.NoError(t, err)

	started := make(chan struct{})
	var done atomic.Bool
	require.NoError(t, pool.Execute(func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	}))

	<-started
	pool.Close()
	assert.True(t, done.Load())
}

func TestThreadPool_PanicIsContained(t *testing.T) {
	var handled atomic.Int32
	pool, err := NewThreadPool(1, WithPanicHandler(func(workerID int, v any) {
		assert.Equal(t, 0, workerID)
		assert.Equal(t, "boom", v)
		handled.Add(1)
	}))
	require.NoError(t, err)

	require.NoError(t, pool.Execute(func() { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, pool.Execute(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking job")
	}

	stats := pool.Stats()
	assert.Equal(t, 1, stats.LiveWorkers)
	assert.EqualValues(t, 1, stats.Panicked)
	assert.EqualValues(t, 1, handled.Load())

	pool.Close()
	assert.EqualValues(t, 2, pool.Stats().Completed)
}

func TestThreadPool_SlowJobDoesNotBlockOthers(t *testing.T) {
	pool, err := NewThreadPool(2)
	require.NoError(t, err)
	defer pool.Close()

	release := make(chan struct{})
	require.NoError(t, pool.Execute(func() {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))

	start := time.Now()
	fast := make(chan struct{})
	require.NoError(t, pool.Execute(func() { close(fast) }))

	select {
	case <-fast:
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("fast job was blocked by the slow one")
	}
	close(release)
}

func TestThreadPool_ShutdownDeadline(t *testing.T) {
	pool, err := NewThreadPool(1)
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, pool.Execute(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, pool.Execute(func() {}), ErrPoolClosed)

	close(release)
	pool.Close()
	assert.Zero(t, pool.Stats().LiveWorkers)
}

func TestThreadPool_UnbufferedQueue(t *testing.T) {
	pool, err := NewThreadPool(2, WithQueueSize(0))
	require.NoError(t, err)

	var counter atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Execute(func() { counter.Add(1) }))
	}
	pool.Close()
	assert.EqualValues(t, 20, counter.Load())
}

func BenchmarkThreadPool_Execute(b *testing.B) {
	pool, err := NewThreadPool(8)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = pool.Execute(func() {
				_ = 1 + 1
			})
		}
	})
	pool.Close()
}

func BenchmarkGoroutine_Direct(b *testing.B) {
	var wg sync.WaitGroup

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			wg.Add(1)
			go func() {
				_ = 1 + 1
				wg.Done()
			}()
		}
	})
	wg.Wait()
}
