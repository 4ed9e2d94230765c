package geometry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/tessera/internal/geom"
)

func square() []geom.Point {
	return []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}
}

func TestIdentityIsStableAndUnique(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, NilID, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), a.ID())

	var missing *Geometry
	assert.Equal(t, NilID, missing.ID())
}

func TestIdentityUniqueAcrossGoroutines(t *testing.T) {
	const n = 1000
	ids := make([]ID, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = New().ID()
		}()
	}
	wg.Wait()

	seen := make(map[ID]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSettersNotifySubscribers(t *testing.T) {
	g := New()
	var got []Attribute
	cancel := g.Subscribe(func(c Change) {
		assert.Equal(t, g.ID(), c.Geometry)
		got = append(got, c.Attribute)
	})

	g.SetPositions([]geom.Vec3{{X: 1}})
	g.SetColors(nil)
	g.SetTextureCoordinates([]geom.Vec2{{}})
	g.SetIndices([]uint32{0})
	g.SetNormals(nil)
	g.SetTangents(nil)
	g.Touch(Colors)
	assert.Equal(t, []Attribute{Positions, Colors, TextureCoordinates, Indices, Normals, Tangents, Colors}, got)

	assert.Equal(t, 1, g.Subscribers())
	cancel()
	cancel()
	assert.Equal(t, 0, g.Subscribers())

	g.SetColors([]geom.Vec4{{}})
	assert.Len(t, got, 7)
}

func TestSubscriberMayReadGeometry(t *testing.T) {
	g := New()
	var seen int
	g.Subscribe(func(Change) { seen = len(g.Positions()) })
	g.SetPositions(make([]geom.Vec3, 3))
	assert.Equal(t, 3, seen)
}

func TestFromPolygon(t *testing.T) {
	g, err := FromPolygon(square(), 0.5)
	require.NoError(t, err)

	assert.Equal(t, 4, g.VertexCount())
	assert.Len(t, g.Indices(), 6)
	assert.Len(t, g.Normals(), 4)
	assert.Len(t, g.Tangents(), 4)
	assert.Len(t, g.TextureCoordinates(), 4)
	assert.Empty(t, g.Colors())
	for _, idx := range g.Indices() {
		assert.Less(t, int(idx), 4)
	}
	for _, uv := range g.TextureCoordinates() {
		assert.True(t, uv.X >= 0 && uv.X <= 1 && uv.Y >= 0 && uv.Y <= 1)
	}

	b := g.Bounds()
	require.True(t, b.Valid)
	assert.Equal(t, geom.V3(0, 0, 0.5), b.Min)
	assert.Equal(t, geom.V3(2, 2, 0.5), b.Max)
	assert.Equal(t, geom.V3(1, 1, 0.5), b.Center())
}

func TestFromPolygonDegenerate(t *testing.T) {
	_, err := FromPolygon(square()[:2], 0)
	assert.Error(t, err)
}

func TestOutline(t *testing.T) {
	g := Outline(square(), 0)
	assert.Equal(t, []uint32{0, 1, 1, 2, 2, 3, 3, 0}, g.Indices())

	single := Outline(square()[:1], 0)
	assert.Empty(t, single.Indices())
}

func TestComputeNormals(t *testing.T) {
	g, err := FromPolygon(square(), 0)
	require.NoError(t, err)
	g.SetNormals(nil)

	var changes []Attribute
	g.Subscribe(func(c Change) { changes = append(changes, c.Attribute) })
	g.ComputeNormals()
	assert.Equal(t, []Attribute{Normals}, changes)

	// Winding depends on the triangulator; only the axis is fixed.
	normals := g.Normals()
	require.Len(t, normals, 4)
	for _, n := range normals {
		assert.InDelta(t, 0, n.X, 1e-6)
		assert.InDelta(t, 0, n.Y, 1e-6)
		assert.InDelta(t, 1, n.Z*n.Z, 1e-6)
		assert.Equal(t, normals[0], n)
	}

	New().ComputeNormals() // no positions
}
