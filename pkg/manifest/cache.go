package manifest

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache memoizes ParseJSON+Validate against the raw bytes of a manifest
// document, the way BillingLogger caches wallet lookups keyed by a
// derived string (api/pkg/openai/logger/billing_logger.go): repeated
// submissions of byte-identical manifests (a long-running native server
// re-opening the same streaming pipeline, or a WASI caller invoked in a
// loop) skip re-parsing and re-validating the graph.
type Cache struct {
	inner *ristretto.Cache[string, *Manifest]
}

// NewCache builds a manifest cache with capacity maxEntries, costed at one
// per cached manifest (manifests are small graph descriptions, not raw
// media, so a count-based cost model is the right fit here unlike
// BillingLogger's byte-cost budget).
func NewCache(maxEntries int64) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[string, *Manifest]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

func digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ParseAndValidate returns a cached, already-validated Manifest for raw if
// one is present; otherwise it parses and validates raw, caches the result
// on success, and returns it. A failed parse/validate is never cached, so
// a caller that fixes a bad manifest and resubmits it is not stuck behind
// a stale negative result.
func (c *Cache) ParseAndValidate(raw []byte) (*Manifest, error) {
	key := digest(raw)
	if m, found := c.inner.Get(key); found {
		return m, nil
	}

	m, err := ParseJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	c.inner.Set(key, m, 1)
	c.inner.Wait()
	return m, nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}
