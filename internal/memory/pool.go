package memory

import (
	"time"
	"unsafe"
)

// Pool is a reusable scratch slice of T. It is not safe for concurrent use: a
// slice returned by GetBuffer belongs to the goroutine that owns the pool and
// is overwritten by that goroutine's next request.
type Pool[T any] struct {
	buf      []T
	lastUsed time.Time
	cfg      *Config
	now      func() time.Time
	stats    PoolStats
}

// PoolStats counts pool activity.
type PoolStats struct {
	Requests    int64 // GetBuffer calls
	Allocations int64 // calls that allocated a new slice
	Oversized   int64 // allocations handed out without being retained
	Releases    int64 // retained slices dropped for being idle and oversized
}

// NewPool returns an empty pool. A nil cfg tracks the process-wide default.
func NewPool[T any](cfg *Config) *Pool[T] {
	p := &Pool[T]{now: time.Now}
	if cfg != nil {
		c := *cfg
		p.cfg = &c
	}
	return p
}

// SetConfig overrides the process-wide thresholds for this pool. Passing nil
// reverts to the default.
func (p *Pool[T]) SetConfig(cfg *Config) {
	if cfg == nil {
		p.cfg = nil
		return
	}
	c := *cfg
	p.cfg = &c
}

func (p *Pool[T]) config() Config {
	if p.cfg != nil {
		return *p.cfg
	}
	return CurrentDefaultConfig()
}

// GetBuffer returns a slice with length at least n. When the retained slice
// is large enough it is returned as is, contents included; callers should
// only read the prefix they wrote.
func (p *Pool[T]) GetBuffer(n int) []T {
	if n < 0 {
		n = 0
	}
	cfg := p.config()
	now := p.now()
	p.stats.Requests++

	if p.buf != nil && len(p.buf) > cfg.MinRetain && len(p.buf) > cfg.ShrinkDivisor*n &&
		now.Sub(p.lastUsed) > cfg.IdleThreshold {
		stagingLogger.Printf("releasing idle %d-element %s buffer (request=%d, idle=%s)",
			len(p.buf), p.elemName(), n, now.Sub(p.lastUsed).Round(time.Millisecond))
		p.buf = nil
		p.stats.Releases++
	}
	p.lastUsed = now

	if p.buf != nil && len(p.buf) >= n {
		return p.buf
	}

	buf := make([]T, cfg.allocSize(n))
	p.stats.Allocations++
	if n > cfg.MaxRetain {
		p.stats.Oversized++
		stagingLogger.Printf("one-off %d-element %s buffer (max retain %d)", n, p.elemName(), cfg.MaxRetain)
		return buf
	}
	stagingLogger.Printf("grew %s buffer %d -> %d elements (request=%d)", p.elemName(), len(p.buf), len(buf), n)
	p.buf = buf
	return buf
}

// Retained returns the length of the slice currently kept for reuse.
func (p *Pool[T]) Retained() int { return len(p.buf) }

// RetainedBytes returns the size of the retained slice in bytes.
func (p *Pool[T]) RetainedBytes() int64 {
	var zero T
	return int64(len(p.buf)) * int64(unsafe.Sizeof(zero))
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool[T]) Stats() PoolStats { return p.stats }

// Reset drops the retained slice.
func (p *Pool[T]) Reset() {
	p.buf = nil
	p.lastUsed = time.Time{}
}

func (p *Pool[T]) elemName() string {
	var zero T
	return typeName(zero)
}
