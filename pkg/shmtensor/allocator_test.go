package shmtensor

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/stretchr/testify/require"
)

func mustRandomID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func TestAllocateAndWriteReadRoundTrip(t *testing.T) {
	a := NewAllocator(Config{TotalQuotaBytes: 1 << 20, CleanupInterval: time.Minute})
	defer a.Close()

	region, err := a.Allocate("session-1", 1024)
	require.NoError(t, err)
	defer a.Release(region.ID())

	require.NoError(t, region.WriteAt(0, []byte("hello")))
	got, err := region.ReadAt(0, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestAllocateRejectsOutOfBoundsAccess(t *testing.T) {
	a := NewAllocator(Config{TotalQuotaBytes: 1 << 20, CleanupInterval: time.Minute})
	defer a.Close()

	region, err := a.Allocate("", 64)
	require.NoError(t, err)
	defer a.Release(region.ID())

	_, err = region.ReadAt(32, 64)
	require.Error(t, err)
	require.Equal(t, corepipeerr.KindValidation, corepipeerr.KindOf(err))
}

func TestAllocateFailsOverGlobalQuota(t *testing.T) {
	a := NewAllocator(Config{TotalQuotaBytes: 100, CleanupInterval: time.Minute})
	defer a.Close()

	_, err := a.Allocate("", 200)
	require.Error(t, err)
	require.Equal(t, corepipeerr.KindResourceLimit, corepipeerr.KindOf(err))
}

func TestAllocateFailsOverPerSessionQuota(t *testing.T) {
	a := NewAllocator(Config{TotalQuotaBytes: 1 << 20, PerSessionQuota: 100, CleanupInterval: time.Minute})
	defer a.Close()

	_, err := a.Allocate("s1", 50)
	require.NoError(t, err)
	_, err = a.Allocate("s1", 60)
	require.Error(t, err)
	require.Equal(t, corepipeerr.KindResourceLimit, corepipeerr.KindOf(err))
}

func TestAcquireIncrementsRefCountAndBlocksFree(t *testing.T) {
	a := NewAllocator(Config{TotalQuotaBytes: 1 << 20, CleanupInterval: time.Millisecond})
	defer a.Close()

	region, err := a.Allocate("", 64)
	require.NoError(t, err)

	_, err = a.Acquire(region.ID())
	require.NoError(t, err)

	require.NoError(t, a.Release(region.ID()))
	// one reference remains: region must still be resolvable
	_, ok := a.regions.Load(region.ID())
	require.True(t, ok)

	require.NoError(t, a.Release(region.ID()))
}

func TestSweepFreesExpiredRegion(t *testing.T) {
	a := NewAllocator(Config{TotalQuotaBytes: 1 << 20, CleanupInterval: 0})
	defer a.Close()

	region, err := a.Allocate("", 64)
	require.NoError(t, err)
	require.NoError(t, a.Release(region.ID()))

	a.sweepExpired()

	_, ok := a.regions.Load(region.ID())
	require.False(t, ok)
}

func TestReleaseUnknownRegionErrors(t *testing.T) {
	a := NewAllocator(DefaultConfig())
	defer a.Close()

	err := a.Release(mustRandomID(t))
	require.Error(t, err)
}
