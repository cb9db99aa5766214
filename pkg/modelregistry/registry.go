// Package modelregistry implements a keyed model cache: reference
// counted handles, LRU-among-idle eviction, TTL sweep, and single-flight
// load coalescing, built on a background-refresh pattern for the
// resident set and an xsync.MapOf-keyed registry for concurrent access.
package modelregistry

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// Loader produces a model value for a key absent from the registry. It
// runs at most once per absent->resident transition; callers
// racing on the same key share the single in-flight call's result.
type Loader func() (value any, sizeBytes int64, err error)

// Config bounds the registry's resident set.
type Config struct {
	CapacityBytes int64
	IdleTTL       time.Duration
}

// DefaultConfig picks a conservative cache sizing.
func DefaultConfig() Config {
	return Config{CapacityBytes: 4 << 30, IdleTTL: 10 * time.Minute}
}

type loadCall struct {
	done chan struct{}
	e    *entry
	err  error
}

// Registry is the process-wide (or test-scoped) model cache.
type Registry struct {
	cfg Config

	resident *xsync.MapOf[string, *entry]
	loading  *xsync.MapOf[string, *loadCall]

	idleMu  sync.Mutex
	idleLRU *simplelru.LRU[string, *entry]

	metrics Metrics

	totalBytes int64 // guarded by idleMu for eviction accounting

	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Registry and starts its background idle-TTL sweep.
func New(cfg Config) *Registry {
	lru, _ := simplelru.NewLRU[string, *entry](1<<31-1, nil)
	r := &Registry{
		cfg:      cfg,
		resident: xsync.NewMapOf[string, *entry](),
		loading:  xsync.NewMapOf[string, *loadCall](),
		idleLRU:  lru,
		stop:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Close stops the background sweep. The registry is unusable afterward.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// GetOrLoad resolves key to a Handle, calling loader at most once for a
// key that transitions from absent to resident. Concurrent
// callers for the same absent key coalesce onto the single in-flight
// load.
func (r *Registry) GetOrLoad(key string, loader Loader) (*Handle, error) {
	if e, ok := r.resident.Load(key); ok {
		r.acquire(e)
		r.metrics.Hits.Add(1)
		return &Handle{reg: r, e: e}, nil
	}

	call := &loadCall{done: make(chan struct{})}
	actual, loaded := r.loading.LoadOrStore(key, call)
	if loaded {
		<-actual.done
		if actual.err != nil {
			return nil, actual.err
		}
		r.acquire(actual.e)
		r.metrics.Hits.Add(1)
		return &Handle{reg: r, e: actual.e}, nil
	}

	r.metrics.Misses.Add(1)
	value, size, err := loader()
	if err != nil {
		call.err = corepipeerr.Wrap(corepipeerr.KindInternal, err, "model loader failed").WithContext("key", key)
		close(call.done)
		r.loading.Delete(key)
		return nil, call.err
	}

	e := newEntry(key, value, size)
	r.resident.Store(key, e)
	r.idleMu.Lock()
	r.totalBytes += size
	r.idleMu.Unlock()
	r.metrics.MemoryBytes.Add(size)
	call.e = e
	close(call.done)
	r.loading.Delete(key)
	return &Handle{reg: r, e: e}, nil
}

func (r *Registry) acquire(e *entry) {
	e.refCount.Add(1)
	e.lastRelease.Store(0)
	r.idleMu.Lock()
	r.idleLRU.Remove(e.key)
	r.idleMu.Unlock()
}

func (r *Registry) release(e *entry) {
	remaining := e.refCount.Add(-1)
	if remaining > 0 {
		return
	}
	e.lastRelease.Store(time.Now().UnixNano())

	r.idleMu.Lock()
	r.idleLRU.Add(e.key, e)
	r.evictOverCapacityLocked()
	r.idleMu.Unlock()
}

// evictOverCapacityLocked must be called with idleMu held. It evicts the
// least-recently-used idle entries until the resident set fits within
// CapacityBytes; active entries are never in idleLRU, so they are never
// considered.
func (r *Registry) evictOverCapacityLocked() {
	if r.cfg.CapacityBytes <= 0 {
		return
	}
	for r.totalBytes > r.cfg.CapacityBytes {
		key, e, ok := r.idleLRU.RemoveOldest()
		if !ok {
			return
		}
		r.evictLocked(key, e)
	}
}

func (r *Registry) evictLocked(key string, e *entry) {
	r.resident.Delete(key)
	r.totalBytes -= e.sizeBytes
	r.metrics.MemoryBytes.Add(-e.sizeBytes)
	r.metrics.Evictions.Add(1)
}

// Clear forces eviction of every currently idle entry; resident active
// entries are left untouched (manual clear()).
func (r *Registry) Clear() {
	r.idleMu.Lock()
	defer r.idleMu.Unlock()
	for {
		key, e, ok := r.idleLRU.RemoveOldest()
		if !ok {
			return
		}
		r.evictLocked(key, e)
	}
}

// Metrics returns a snapshot of hit/miss/memory counters.
func (r *Registry) Metrics() Snapshot {
	return r.metrics.Snapshot()
}

func (r *Registry) sweepLoop() {
	if r.cfg.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(r.cfg.IdleTTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweepExpired()
		}
	}
}

func (r *Registry) sweepExpired() {
	now := time.Now()
	r.idleMu.Lock()
	defer r.idleMu.Unlock()
	var expired []string
	for _, key := range r.idleLRU.Keys() {
		e, ok := r.idleLRU.Peek(key)
		if !ok {
			continue
		}
		since := e.idleSince()
		if !since.IsZero() && now.Sub(since) >= r.cfg.IdleTTL {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		e, ok := r.idleLRU.Get(key)
		if !ok {
			continue
		}
		r.idleLRU.Remove(key)
		r.evictLocked(key, e)
		log.Debug().Str("key", key).Msg("model registry entry expired under idle TTL")
	}
}
