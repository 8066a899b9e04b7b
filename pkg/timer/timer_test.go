package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_FiresAfterDelay(t *testing.T) {
	s := New()
	s.Init()
	defer s.Shutdown()

	fired := make(chan any, 1)
	_, err := s.Start(20*time.Millisecond, func(opaque any) { fired <- opaque }, "payload")
	require.NoError(t, err)

	select {
	case v := <-fired:
		assert.Equal(t, "payload", v)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestService_StopBeforeFire_ReturnsRemoved(t *testing.T) {
	s := New()
	s.Init()
	defer s.Shutdown()

	var fired atomic.Bool
	id, err := s.Start(200*time.Millisecond, func(any) { fired.Store(true) }, nil)
	require.NoError(t, err)

	require.Equal(t, StopRemoved, s.Stop(&id))
	assert.Equal(t, ID(0), id, "Stop must zero the handle on exit")

	time.Sleep(300 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestService_StopUnknownID_ReturnsInvalid(t *testing.T) {
	s := New()
	s.Init()
	defer s.Shutdown()

	bogus := ID(999999)
	assert.Equal(t, StopInvalid, s.Stop(&bogus))

	var zero ID
	assert.Equal(t, StopInvalid, s.Stop(&zero))
	assert.Equal(t, StopInvalid, s.Stop(nil))
}

// TestService_StopRaceAfterFire_ReturnsNotFound exercises spec.md's
// cancellation race: a Stop call that loses the race against a
// concurrently-firing callback must report StopNotFound rather than
// silently succeeding or blocking, so the caller can tell the
// callback now owns whatever resource it guarded.
func TestService_StopRaceAfterFire_ReturnsNotFound(t *testing.T) {
	s := New()
	s.Init()
	defer s.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	id, err := s.Start(5*time.Millisecond, func(any) { wg.Done() }, nil)
	require.NoError(t, err)

	wg.Wait() // guarantees the callback has already run
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StopNotFound, s.Stop(&id))
}

func TestService_Shutdown_DoesNotFirePending(t *testing.T) {
	s := New()
	s.Init()

	var fired atomic.Bool
	_, err := s.Start(500*time.Millisecond, func(any) { fired.Store(true) }, nil)
	require.NoError(t, err)

	s.Shutdown()
	time.Sleep(600 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestService_MultipleEntries_FireInOrder(t *testing.T) {
	s := New()
	s.Init()
	defer s.Shutdown()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	record := func(n int) Callback {
		return func(any) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			wg.Done()
		}
	}
	_, _ = s.Start(30*time.Millisecond, record(3), nil)
	_, _ = s.Start(10*time.Millisecond, record(1), nil)
	_, _ = s.Start(20*time.Millisecond, record(2), nil)

	wg.Wait()
	assert.Equal(t, []int{1, 2, 3}, order)
}
