package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"settlement-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquire_Serializes(t *testing.T) {
	m := NewManager(time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "offer-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Len())
}

func TestAcquire_TimeoutIsBusy(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	ctx := context.Background()

	release, err := m.Acquire(ctx, "offer-1")
	require.NoError(t, err)
	defer release()

	_, err = m.Acquire(ctx, "offer-1")
	assert.ErrorIs(t, err, domain.ErrBusy)

	// other keys are independent
	r2, err := m.Acquire(ctx, "offer-2")
	require.NoError(t, err)
	r2()
}

func TestAcquire_CancelledContext(t *testing.T) {
	m := NewManager(time.Second)

	release, err := m.Acquire(context.Background(), "offer-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Acquire(ctx, "offer-1")
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrBusy)

	release()
	assert.Equal(t, 0, m.Len())
}

func TestAcquire_AlreadyCancelled(t *testing.T) {
	m := NewManager(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Acquire(ctx, "offer-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.Len())
}

func TestRelease_Idempotent(t *testing.T) {
	m := NewManager(time.Second)
	release, err := m.Acquire(context.Background(), "offer-1")
	require.NoError(t, err)
	release()
	release()

	r, err := m.Acquire(context.Background(), "offer-1")
	require.NoError(t, err)
	r()
}
