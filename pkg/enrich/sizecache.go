// pkg/enrich/sizecache.go
package enrich

// NaturalSizeCache memoizes natural pixel dimensions per resource URL so
// repeated elements referencing the same resource never trigger a second
// remote measurement. There is no eviction; the cache lives for exactly one
// audit run and the page is assumed static for that duration. Access is
// single-threaded within a run (the scheduler drives the remote channel
// sequentially), so no internal locking is required.
type NaturalSizeCache struct {
	sizes map[string]Size
}

// NewNaturalSizeCache returns an empty run-scoped cache.
func NewNaturalSizeCache() *NaturalSizeCache {
	return &NaturalSizeCache{sizes: make(map[string]Size)}
}

// Get reports the cached natural size for url. Reads are idempotent.
func (c *NaturalSizeCache) Get(url string) (Size, bool) {
	s, ok := c.sizes[url]
	return s, ok
}

// Set records the natural size for url. At most one entry per URL; a
// repeat Set overwrites, which in practice never changes the value within
// a run.
func (c *NaturalSizeCache) Set(url string, s Size) {
	c.sizes[url] = s
}

// Len reports the number of cached entries.
func (c *NaturalSizeCache) Len() int {
	return len(c.sizes)
}
