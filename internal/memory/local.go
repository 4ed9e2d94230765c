package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/jtolds/gls"
)

// Goroutine-local arenas. Each goroutine that calls Bind gets its own arena
// of pools for the duration of the bound call; pools are created lazily, one
// per Local, and never leave that goroutine.
var (
	locals      = gls.NewContextManager()
	nextLocalID atomic.Uint64
)

type arenaKey struct{}

type arena struct {
	pools map[uint64]any
}

// Bind runs fn with a staging arena bound to the calling goroutine. Calls to
// Local.GetBuffer made from fn (directly or deeper in its call stack) reuse
// pools from that arena. Nested calls share the outer arena.
//
// Goroutines started with gls.Go inherit their parent's bound values, which
// would share its pools; such goroutines must call Bind themselves before
// staging anything.
func Bind(fn func()) {
	if Bound() {
		fn()
		return
	}
	locals.SetValues(gls.Values{arenaKey{}: &arena{pools: make(map[uint64]any)}}, fn)
}

// Bound reports whether the calling goroutine has a staging arena.
func Bound() bool {
	_, ok := locals.GetValue(arenaKey{})
	return ok
}

func currentArena() (*arena, bool) {
	v, ok := locals.GetValue(arenaKey{})
	if !ok {
		return nil, false
	}
	return v.(*arena), true
}

// Local hands out one Pool[T] per bound goroutine.
type Local[T any] struct {
	id       uint64
	cfg      *Config
	unbound  atomic.Int64
	poolsNew atomic.Int64
}

// NewLocal returns a goroutine-local pool family. A nil cfg tracks the
// process-wide default.
func NewLocal[T any](cfg *Config) *Local[T] {
	l := &Local[T]{id: nextLocalID.Add(1)}
	if cfg != nil {
		c := *cfg
		l.cfg = &c
	}
	return l
}

// Pool returns the calling goroutine's pool, creating it on first use. It
// reports false when the goroutine has no arena bound.
func (l *Local[T]) Pool() (*Pool[T], bool) {
	a, ok := currentArena()
	if !ok {
		return nil, false
	}
	if p, ok := a.pools[l.id]; ok {
		return p.(*Pool[T]), true
	}
	p := NewPool[T](l.cfg)
	a.pools[l.id] = p
	l.poolsNew.Add(1)
	return p, true
}

// GetBuffer returns a scratch slice of length at least n from the calling
// goroutine's pool. Without a bound arena the slice is freshly allocated and
// not retained.
func (l *Local[T]) GetBuffer(n int) []T {
	if p, ok := l.Pool(); ok {
		return p.GetBuffer(n)
	}
	if n < 0 {
		n = 0
	}
	if l.unbound.Add(1) == 1 {
		var zero T
		stagingLogger.Printf("%s staging requested outside Bind; allocating without reuse", typeName(zero))
	}
	return make([]T, n)
}

// UnboundRequests returns how many requests were served without an arena.
func (l *Local[T]) UnboundRequests() int64 { return l.unbound.Load() }

// PoolsCreated returns how many goroutine-local pools this Local has created.
func (l *Local[T]) PoolsCreated() int64 { return l.poolsNew.Load() }

func typeName(v any) string { return fmt.Sprintf("%T", v) }
