package buffers

import (
	"io"
	"log"
	"os"
	"sync"

	"github.com/irfansharif/tessera/internal/geometry"
	"github.com/irfansharif/tessera/internal/keymap"
)

var registryLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("TESSERA_DEBUG_REGISTRY") == "1" {
		registryLogger = log.New(os.Stdout, "[registry] ", log.Ltime|log.Lmsgprefix)
	}
}

// Factory constructs the model for a geometry. It must not return nil for a
// kind it is registered under.
type Factory func(g *geometry.Geometry) *Model

// entry is the ownership record for one shared model. All fields are guarded
// by the registry's mutex.
type entry struct {
	key      Key
	count    int
	model    *Model
	disposed bool
}

func (e *entry) AddRef() { e.count++ }

// Release drops one reference and reports whether it was the last. Releasing
// a disposed entry is a no-op.
func (e *entry) Release() (nowZero bool) {
	if e.disposed || e.count <= 0 {
		return false
	}
	e.count--
	if e.count == 0 {
		e.disposed = true
		return true
	}
	return false
}

// Registry shares models between renderables that draw the same geometry.
// There is at most one live model per (Kind, geometry ID); it is created on
// first registration and released when the last holder disposes it.
type Registry struct {
	mu        sync.Mutex
	entries   *keymap.Map[Kind, geometry.ID, *entry]
	factories map[Kind]Factory
	closed    bool

	created int64
	evicted int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithFactory overrides how models of kind are constructed.
func WithFactory(kind Kind, f Factory) Option {
	return func(r *Registry) { r.factories[kind] = f }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:   keymap.New[Kind, geometry.ID, *entry](),
		factories: make(map[Kind]Factory),
	}
	for _, k := range kinds {
		r.factories[k] = func(g *geometry.Geometry) *Model { return newModelFor(k, g) }
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register returns the shared model of kind for g, creating it if needed, and
// takes one reference on it. The caller releases the reference with
// Model.Dispose. A nil geometry, a geometry without an identity, an unknown
// kind, or a closed registry all yield Empty().
func (r *Registry) Register(kind Kind, g *geometry.Geometry) *Model {
	id := g.ID()
	if id == geometry.NilID {
		return Empty()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		registryLogger.Printf("register %s/%s after close", kind, id)
		return Empty()
	}

	if e, ok := r.entries.TryGet(kind, id); ok {
		e.AddRef()
		registryLogger.Printf("%s/%s: refs=%d", kind, id, e.count)
		return e.model
	}

	factory, ok := r.factories[kind]
	if !ok {
		registryLogger.Printf("no factory for kind %s", kind)
		return Empty()
	}
	m := factory(g)
	if m.IsEmpty() {
		return Empty()
	}
	e := &entry{key: Key{Kind: kind, Geometry: id}, count: 1, model: m}
	m.release = func() { r.release(e) }
	r.entries.Add(kind, id, e)
	r.created++
	registryLogger.Printf("%s/%s: created (%d entries)", kind, id, r.entries.Len())
	return m
}

// release drops one reference on e and, on the last one, removes the entry
// and destroys its model outside the lock.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	if !e.Release() {
		if !e.disposed {
			registryLogger.Printf("%s/%s: refs=%d", e.key.Kind, e.key.Geometry, e.count)
		}
		r.mu.Unlock()
		return
	}
	if cur, ok := r.entries.TryGet(e.key.Kind, e.key.Geometry); ok && cur == e {
		r.entries.Remove(e.key.Kind, e.key.Geometry)
	}
	r.evicted++
	registryLogger.Printf("%s/%s: evicted (%d entries)", e.key.Kind, e.key.Geometry, r.entries.Len())
	r.mu.Unlock()

	e.model.destroy()
}

// RefCount returns the reference count for (kind, id), 0 when absent.
func (r *Registry) RefCount(kind Kind, id geometry.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries.TryGet(kind, id); ok {
		return e.count
	}
	return 0
}

// Contains reports whether a model for (kind, id) is resident.
func (r *Registry) Contains(kind Kind, id geometry.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries.Contains(kind, id)
}

// Len returns the number of resident models.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries.Len()
}

// Close disposes every resident model regardless of its reference count and
// empties the registry. Later registrations return Empty(), and disposing a
// model handed out earlier is a no-op.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	var models []*Model
	for e := range r.entries.Values() {
		e.disposed = true
		e.count = 0
		models = append(models, e.model)
	}
	r.entries.Clear()
	r.evicted += int64(len(models))
	r.mu.Unlock()

	registryLogger.Printf("closing: disposing %d models", len(models))
	for _, m := range models {
		m.destroy()
	}
}
