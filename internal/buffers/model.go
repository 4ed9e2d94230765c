// Package buffers turns geometries into GPU buffers.
//
// A Model owns the device buffers built from one geometry, split into
// independently uploaded streams. Each stream declares the geometry
// attributes it is built from; a change to one of those attributes marks just
// that stream dirty, and the next UpdateBuffers pass re-uploads only the dirty
// streams. Models are shared between renderables through a Registry, keyed by
// (Kind, geometry ID) and reference counted.
package buffers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/irfansharif/tessera/internal/geometry"
	"github.com/irfansharif/tessera/internal/gpu"
)

var uploadLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("TESSERA_DEBUG_UPLOAD") == "1" {
		uploadLogger = log.New(os.Stdout, "[upload] ", log.Ltime|log.Lmsgprefix)
	}
}

// ErrDisposed is returned when updating a model that has been disposed.
var ErrDisposed = errors.New("buffers: model disposed")

// StreamState is the lifecycle state of one stream.
type StreamState int

const (
	Uninitialized StreamState = iota // never uploaded
	Clean                            // uploaded, up to date
	Dirty                            // uploaded, stale
	Disposed                         // device buffer released
)

func (s StreamState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// StreamInfo describes a stream for inspection.
type StreamInfo struct {
	Name      string
	State     StreamState
	Count     int // elements in the last upload
	SizeBytes int
	Uploads   int
}

// fillFunc uploads a stream's current data from g into b.
type fillFunc func(ctx gpu.Context, g *geometry.Geometry, b *gpu.Buffer) error

type stream struct {
	buf     *gpu.Buffer
	affects []geometry.Attribute
	dirty   atomic.Bool
	fill    fillFunc
}

func (s *stream) matches(attr geometry.Attribute) bool {
	return slices.Contains(s.affects, attr)
}

// Model holds the device buffers for one geometry. Streams are uploaded by
// UpdateBuffers and bound by AttachBuffers; both are serialized by a lock
// owned by the model.
type Model struct {
	kind      Kind
	geo       *geometry.Geometry
	primitive gpu.Primitive
	streams   []*stream
	vertices  *stream // stream whose count is the vertex count
	index     *stream // nil for unindexed kinds

	mu  sync.Mutex // upload/bind critical section
	ctx gpu.Context

	unsubscribe func()
	disposed    atomic.Bool

	// release is set by the registry that handed the model out; nil for
	// models built directly.
	release func()

	cbMu       sync.Mutex
	onDisposed []func()
}

// empty is the shared no-op model returned for absent geometry.
var empty = &Model{}

// Empty returns the shared model that has no streams and ignores every call.
func Empty() *Model { return empty }

// IsEmpty reports whether m is the shared no-op model.
func (m *Model) IsEmpty() bool { return m == nil || m == empty }

func newModel(kind Kind, g *geometry.Geometry, prim gpu.Primitive) *Model {
	return &Model{kind: kind, geo: g, primitive: prim}
}

func (m *Model) addStream(name string, target gpu.Target, stride int, fill fillFunc,
	affects []geometry.Attribute, attrs ...gpu.Attribute) *stream {
	s := &stream{
		buf:     gpu.NewBuffer(fmt.Sprintf("%s.%s", m.kind, name), target, stride, attrs...),
		affects: affects,
		fill:    fill,
	}
	s.dirty.Store(true)
	m.streams = append(m.streams, s)
	return s
}

// subscribe starts listening for geometry changes. Called once the streams
// are declared.
func (m *Model) subscribe() {
	m.unsubscribe = m.geo.Subscribe(m.onChange)
}

func (m *Model) onChange(c geometry.Change) {
	if m.disposed.Load() {
		return
	}
	for _, s := range m.streams {
		if s.matches(c.Attribute) {
			s.dirty.Store(true)
		}
	}
}

// Kind returns the model's buffer kind.
func (m *Model) Kind() Kind { return m.kind }

// Geometry returns the source geometry, nil for the empty model.
func (m *Model) Geometry() *geometry.Geometry { return m.geo }

// Primitive returns the topology the model is drawn with.
func (m *Model) Primitive() gpu.Primitive { return m.primitive }

// VertexCount returns the number of vertices in the last upload.
func (m *Model) VertexCount() int {
	if m.IsEmpty() {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vertices.buf.Count()
}

// IndexCount returns the number of indices in the last upload, 0 for
// unindexed kinds.
func (m *Model) IndexCount() int {
	if m.IsEmpty() || m.index == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.buf.Count()
}

// UpdateBuffers uploads every stream whose dirty flag is set and reports
// whether anything was uploaded. A stream whose source data is empty still
// gets a zero-length upload. If an upload fails the stream stays dirty and
// the error is returned; streams uploaded earlier in the pass stay uploaded.
func (m *Model) UpdateBuffers(ctx gpu.Context) (bool, error) {
	if m.IsEmpty() {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed.Load() {
		return false, ErrDisposed
	}
	m.ctx = ctx

	changed := false
	for _, s := range m.streams {
		if !s.dirty.Swap(false) {
			continue
		}
		if err := s.fill(ctx, m.geo, s.buf); err != nil {
			s.dirty.Store(true)
			return changed, fmt.Errorf("updating %s for geometry %s: %w", s.buf.Name, m.geo.ID(), err)
		}
		uploadLogger.Printf("%s: %d elements (%d bytes)", s.buf.Name, s.buf.Count(), s.buf.SizeBytes())
		changed = true
	}
	return changed, nil
}

// AttachBuffers binds the model's streams for drawing, starting at *slot and
// advancing it past the attribute locations consumed. It reports false, and
// binds nothing, if the model is empty, disposed, or has a stream that was
// never uploaded.
func (m *Model) AttachBuffers(ctx gpu.Context, slot *int) (bool, error) {
	if m.IsEmpty() {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed.Load() {
		return false, nil
	}
	for _, s := range m.streams {
		if s.buf.Uploads() == 0 {
			return false, nil
		}
	}
	for _, s := range m.streams {
		n, err := ctx.Bind(s.buf, *slot)
		if err != nil {
			return false, fmt.Errorf("binding %s: %w", s.buf.Name, err)
		}
		*slot += n
	}
	return true, nil
}

// DrawCall returns the draw for the last uploaded state with the given
// instance count.
func (m *Model) DrawCall(instances int) gpu.DrawCall {
	call := gpu.DrawCall{Primitive: m.primitive, Instances: instances}
	if m.IsEmpty() {
		return call
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index != nil && m.index.buf.Count() > 0 {
		call.Indexed = true
		call.Count = m.index.buf.Count()
	} else {
		call.Count = m.vertices.buf.Count()
	}
	return call
}

// Dirty reports whether any stream awaits upload.
func (m *Model) Dirty() bool {
	for _, s := range m.streams {
		if s.dirty.Load() {
			return true
		}
	}
	return false
}

// Streams reports each stream's state.
func (m *Model) Streams() []StreamInfo {
	if m.IsEmpty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]StreamInfo, len(m.streams))
	for i, s := range m.streams {
		info := StreamInfo{
			Name:      s.buf.Name,
			Count:     s.buf.Count(),
			SizeBytes: s.buf.SizeBytes(),
			Uploads:   s.buf.Uploads(),
		}
		switch {
		case m.disposed.Load():
			info.State = Disposed
		case s.buf.Uploads() == 0:
			info.State = Uninitialized
		case s.dirty.Load():
			info.State = Dirty
		default:
			info.State = Clean
		}
		infos[i] = info
	}
	return infos
}

// SizeBytes returns the total bytes last uploaded across all streams.
func (m *Model) SizeBytes() int {
	total := 0
	for _, info := range m.Streams() {
		total += info.SizeBytes
	}
	return total
}

// OnDisposed registers fn to run once when the model is finally disposed.
// If it already has been, fn runs immediately.
func (m *Model) OnDisposed(fn func()) {
	if m.IsEmpty() {
		return
	}
	m.cbMu.Lock()
	if !m.disposed.Load() {
		m.onDisposed = append(m.onDisposed, fn)
		m.cbMu.Unlock()
		return
	}
	m.cbMu.Unlock()
	fn()
}

// IsDisposed reports whether the model's buffers have been released.
func (m *Model) IsDisposed() bool { return !m.IsEmpty() && m.disposed.Load() }

// Dispose releases one reference. For a model obtained from a Registry the
// buffers are released when the last reference goes; a model built directly
// is released immediately. Calls past the last reference are no-ops.
func (m *Model) Dispose() {
	if m.IsEmpty() {
		return
	}
	if m.release != nil {
		m.release()
		return
	}
	m.destroy()
}

// destroy releases the device buffers and runs the disposal callbacks. Only
// the first call has any effect.
func (m *Model) destroy() {
	m.cbMu.Lock()
	if m.disposed.Swap(true) {
		m.cbMu.Unlock()
		return
	}
	callbacks := m.onDisposed
	m.onDisposed = nil
	m.cbMu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
	}

	m.mu.Lock()
	if m.ctx != nil {
		for _, s := range m.streams {
			if s.buf.Handle != 0 {
				m.ctx.Release(s.buf)
			}
		}
	}
	m.ctx = nil
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
