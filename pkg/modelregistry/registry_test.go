package modelregistry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetOrLoadCallsLoaderOnceForConcurrentWaiters(t *testing.T) {
	r := New(Config{CapacityBytes: 1 << 20, IdleTTL: time.Hour})
	defer r.Close()

	var calls atomic.Int32
	loader := func() (any, int64, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "model-v1", 1024, nil
	}

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := range handles {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := r.GetOrLoad("m1", loader)
			require.NoError(t, err)
			handles[i] = h
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for _, h := range handles {
		require.Equal(t, "model-v1", h.Value())
		h.Release()
	}
}

func TestActiveEntryNeverEvicted(t *testing.T) {
	r := New(Config{CapacityBytes: 10, IdleTTL: time.Hour})
	defer r.Close()

	h1, err := r.GetOrLoad("big", func() (any, int64, error) { return "v", 100, nil })
	require.NoError(t, err)

	// still active (never released); a second distinct key load should not
	// evict it even though combined size exceeds CapacityBytes.
	h2, err := r.GetOrLoad("other", func() (any, int64, error) { return "v2", 100, nil })
	require.NoError(t, err)
	h2.Release()

	h1again, err := r.GetOrLoad("big", func() (any, int64, error) {
		t.Fatal("loader should not run again for a still-resident active key")
		return nil, 0, nil
	})
	require.NoError(t, err)
	require.Equal(t, "v", h1again.Value())

	h1.Release()
	h1again.Release()
}

func TestReleaseMakesEntryEvictable(t *testing.T) {
	r := New(Config{CapacityBytes: 10, IdleTTL: time.Hour})
	defer r.Close()

	h1, err := r.GetOrLoad("a", func() (any, int64, error) { return "a", 100, nil })
	require.NoError(t, err)
	h1.Release()

	var loaderRan bool
	h2, err := r.GetOrLoad("b", func() (any, int64, error) {
		loaderRan = true
		return "b", 100, nil
	})
	require.NoError(t, err)
	defer h2.Release()

	require.True(t, loaderRan)
	require.Equal(t, int64(1), r.Metrics().Evictions)

	_, err = r.GetOrLoad("a", func() (any, int64, error) { return "a-reloaded", 100, nil })
	require.NoError(t, err)
}

func TestMetricsHitMissAccounting(t *testing.T) {
	r := New(Config{CapacityBytes: 1 << 20, IdleTTL: time.Hour})
	defer r.Close()

	h, err := r.GetOrLoad("k", func() (any, int64, error) { return 1, 8, nil })
	require.NoError(t, err)
	h2, err := r.GetOrLoad("k", func() (any, int64, error) { return 1, 8, nil })
	require.NoError(t, err)
	defer h.Release()
	defer h2.Release()

	snap := r.Metrics()
	require.Equal(t, int64(1), snap.Misses)
	require.Equal(t, int64(1), snap.Hits)
	require.InDelta(t, 0.5, snap.HitRate, 0.0001)
}

func TestClearEvictsOnlyIdleEntries(t *testing.T) {
	r := New(Config{CapacityBytes: 1 << 20, IdleTTL: time.Hour})
	defer r.Close()

	active, err := r.GetOrLoad("active", func() (any, int64, error) { return "x", 8, nil })
	require.NoError(t, err)
	idle, err := r.GetOrLoad("idle", func() (any, int64, error) { return "y", 8, nil })
	require.NoError(t, err)
	idle.Release()

	r.Clear()

	var reloadedIdle bool
	_, err = r.GetOrLoad("idle", func() (any, int64, error) {
		reloadedIdle = true
		return "y2", 8, nil
	})
	require.NoError(t, err)
	require.True(t, reloadedIdle, "idle entry should have been evicted by Clear")

	var reloadedActive bool
	h, err := r.GetOrLoad("active", func() (any, int64, error) {
		reloadedActive = true
		return "x2", 8, nil
	})
	require.NoError(t, err)
	require.False(t, reloadedActive, "active entry must survive Clear")
	h.Release()
	active.Release()
}
