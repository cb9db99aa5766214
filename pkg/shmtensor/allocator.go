package shmtensor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// Config bounds an Allocator's quota and sweep cadence.
type Config struct {
	TotalQuotaBytes   int64
	PerSessionQuota   int64 // 0 disables the per-session check
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{TotalQuotaBytes: 2 << 30, CleanupInterval: 30 * time.Second}
}

type trackedRegion struct {
	region      *Region
	sessionID   string
	lastRelease atomic.Int64 // unix nanos; zero while still referenced
}

// Allocator owns a process-global byte quota (optionally also scoped
// per-session) over a keyed set of reference-counted Regions: a quota
// tracker over a keyed resource set, generalized from GPU slots to named
// shared-memory regions.
type Allocator struct {
	cfg Config

	regions       *xsync.MapOf[uuid.UUID, *trackedRegion]
	totalBytes    atomic.Int64
	sessionBytes  *xsync.MapOf[string, *atomic.Int64]

	stopOnce sync.Once
	cancel   context.CancelFunc
}

func NewAllocator(cfg Config) *Allocator {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Allocator{
		cfg:          cfg,
		regions:      xsync.NewMapOf[uuid.UUID, *trackedRegion](),
		sessionBytes: xsync.NewMapOf[string, *atomic.Int64](),
		cancel:       cancel,
	}
	go a.sweepLoop(ctx)
	return a
}

// Allocate creates a new region of size bytes, failing with a typed
// resource-limit error if either the global or the per-session quota
// would be exceeded.
func (a *Allocator) Allocate(sessionID string, size int64) (*Region, error) {
	if size <= 0 {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "shmtensor: region size must be positive")
	}

	if a.totalBytes.Add(size) > a.cfg.TotalQuotaBytes {
		a.totalBytes.Add(-size)
		return nil, corepipeerr.New(corepipeerr.KindResourceLimit, "shmtensor: global byte quota exceeded")
	}

	var sessionCounter *atomic.Int64
	if a.cfg.PerSessionQuota > 0 && sessionID != "" {
		sessionCounter, _ = a.sessionBytes.LoadOrStore(sessionID, &atomic.Int64{})
		if sessionCounter.Add(size) > a.cfg.PerSessionQuota {
			sessionCounter.Add(-size)
			a.totalBytes.Add(-size)
			return nil, corepipeerr.New(corepipeerr.KindResourceLimit, "shmtensor: per-session byte quota exceeded")
		}
	}

	id := uuid.New()
	m, err := newMapping(id, size)
	if err != nil {
		a.totalBytes.Add(-size)
		if sessionCounter != nil {
			sessionCounter.Add(-size)
		}
		return nil, err
	}

	region := &Region{id: id, size: size, mapping: m}
	region.refCount.Store(1)
	tr := &trackedRegion{region: region, sessionID: sessionID}
	a.regions.Store(id, tr)
	return region, nil
}

// Acquire adds a reference to an already-allocated region, returning a
// typed error if it is unknown or has already been fully released.
func (a *Allocator) Acquire(id uuid.UUID) (*Region, error) {
	tr, ok := a.regions.Load(id)
	if !ok {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "shmtensor: unknown region")
	}
	tr.region.acquire()
	tr.lastRelease.Store(0)
	return tr.region, nil
}

// Release drops one reference; the underlying OS resource is only freed
// once the final reference is released, and even then only after
// CleanupInterval has elapsed with no new acquisition (the TTL sweep).
func (a *Allocator) Release(id uuid.UUID) error {
	tr, ok := a.regions.Load(id)
	if !ok {
		return corepipeerr.New(corepipeerr.KindValidation, "shmtensor: unknown region")
	}
	if tr.region.release() {
		tr.lastRelease.Store(time.Now().UnixNano())
	}
	return nil
}

func (a *Allocator) free(id uuid.UUID, tr *trackedRegion) {
	if err := tr.region.mapping.close(); err != nil {
		log.Warn().Err(err).Str("region_id", id.String()).Msg("shmtensor: failed to release region mapping")
	}
	a.regions.Delete(id)
	a.totalBytes.Add(-tr.region.size)
	if tr.sessionID != "" {
		if c, ok := a.sessionBytes.Load(tr.sessionID); ok {
			c.Add(-tr.region.size)
		}
	}
}

// Close stops the sweep loop without freeing still-referenced regions.
func (a *Allocator) Close() {
	a.stopOnce.Do(a.cancel)
}

func (a *Allocator) sweepLoop(ctx context.Context) {
	interval := a.cfg.CleanupInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepExpired()
		}
	}
}

func (a *Allocator) sweepExpired() {
	cutoff := time.Now().Add(-a.cfg.CleanupInterval).UnixNano()
	var expired []uuid.UUID
	a.regions.Range(func(id uuid.UUID, tr *trackedRegion) bool {
		if tr.region.refs() == 0 {
			if last := tr.lastRelease.Load(); last != 0 && last <= cutoff {
				expired = append(expired, id)
			}
		}
		return true
	})
	for _, id := range expired {
		if tr, ok := a.regions.Load(id); ok && tr.region.refs() == 0 {
			a.free(id, tr)
		}
	}
}

// Capable reports whether this platform supports the native
// shared-memory facility. Callers
// should fall back to an inline byte payload when false.
func Capable() bool { return platformCapable() }
