// Package geometry holds the CPU-side source data that GPU buffers are built
// from.
//
// A Geometry owns a set of independent streams (positions, normals, tangents,
// texture coordinates, colors, indices). Each setter replaces a stream
// wholesale and then notifies subscribers with the name of the attribute that
// changed, which is what buffer models use to decide which GPU streams to
// re-upload. Slices handed to or returned from a Geometry must be treated as
// immutable.
package geometry

import (
	"sync"

	"github.com/irfansharif/tessera/internal/geom"
)

// Attribute names one stream of a geometry in change notifications.
type Attribute string

const (
	Positions          Attribute = "Positions"
	Normals            Attribute = "Normals"
	Tangents           Attribute = "Tangents"
	TextureCoordinates Attribute = "TextureCoordinates"
	Colors             Attribute = "Colors"
	Indices            Attribute = "Indices"
)

// Change is delivered to subscribers after a stream is replaced.
type Change struct {
	Geometry  ID
	Attribute Attribute
}

// Geometry is a mutable, shareable source of vertex streams.
type Geometry struct {
	id ID

	mu        sync.RWMutex
	positions []geom.Vec3
	normals   []geom.Vec3
	tangents  []geom.Vec3
	texCoords []geom.Vec2
	colors    []geom.Vec4
	indices   []uint32

	subMu   sync.Mutex
	subs    map[uint64]func(Change)
	nextSub uint64
}

// New returns an empty geometry with a fresh identity.
func New() *Geometry {
	return &Geometry{id: newID(), subs: make(map[uint64]func(Change))}
}

// ID returns the geometry's identity, or NilID for a nil geometry.
func (g *Geometry) ID() ID {
	if g == nil {
		return NilID
	}
	return g.id
}

func (g *Geometry) Positions() []geom.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.positions
}

func (g *Geometry) Normals() []geom.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.normals
}

func (g *Geometry) Tangents() []geom.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tangents
}

func (g *Geometry) TextureCoordinates() []geom.Vec2 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.texCoords
}

func (g *Geometry) Colors() []geom.Vec4 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.colors
}

func (g *Geometry) Indices() []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.indices
}

func (g *Geometry) SetPositions(v []geom.Vec3) {
	g.mu.Lock()
	g.positions = v
	g.mu.Unlock()
	g.notify(Positions)
}

func (g *Geometry) SetNormals(v []geom.Vec3) {
	g.mu.Lock()
	g.normals = v
	g.mu.Unlock()
	g.notify(Normals)
}

func (g *Geometry) SetTangents(v []geom.Vec3) {
	g.mu.Lock()
	g.tangents = v
	g.mu.Unlock()
	g.notify(Tangents)
}

func (g *Geometry) SetTextureCoordinates(v []geom.Vec2) {
	g.mu.Lock()
	g.texCoords = v
	g.mu.Unlock()
	g.notify(TextureCoordinates)
}

func (g *Geometry) SetColors(v []geom.Vec4) {
	g.mu.Lock()
	g.colors = v
	g.mu.Unlock()
	g.notify(Colors)
}

func (g *Geometry) SetIndices(v []uint32) {
	g.mu.Lock()
	g.indices = v
	g.mu.Unlock()
	g.notify(Indices)
}

// Touch notifies subscribers that attr changed without replacing it.
func (g *Geometry) Touch(attr Attribute) { g.notify(attr) }

// VertexCount returns the number of positions.
func (g *Geometry) VertexCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.positions)
}

// Bounds returns the bounding box of the positions.
func (g *Geometry) Bounds() geom.Box3 {
	var b geom.Box3
	for _, p := range g.Positions() {
		b = b.Expand(p)
	}
	return b
}

// Subscribe registers fn to receive every subsequent change. Callbacks run on
// the goroutine that made the change, after the geometry's lock is released,
// and must not block. The returned function cancels the subscription.
func (g *Geometry) Subscribe(fn func(Change)) (cancel func()) {
	g.subMu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.subMu.Lock()
			delete(g.subs, id)
			g.subMu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (g *Geometry) Subscribers() int {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	return len(g.subs)
}

func (g *Geometry) notify(attr Attribute) {
	g.subMu.Lock()
	fns := make([]func(Change), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.subMu.Unlock()

	c := Change{Geometry: g.id, Attribute: attr}
	for _, fn := range fns {
		fn(c)
	}
}
