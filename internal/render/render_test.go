package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/tessera/internal/buffers"
	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/geometry"
	"github.com/irfansharif/tessera/internal/gpu"
	"github.com/irfansharif/tessera/internal/gpu/gputest"
)

var squarePoints = []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

func square(t *testing.T) *geometry.Geometry {
	t.Helper()
	g, err := geometry.FromPolygon(squarePoints, 0)
	require.NoError(t, err)
	return g
}

type recordingPipeline struct {
	used []gpu.Primitive
}

func (p *recordingPipeline) Use(prim gpu.Primitive, _ geom.Mat4) {
	p.used = append(p.used, prim)
}

// instanceBinds returns the slots instance buffers were bound at, in order.
func instanceBinds(rec *gputest.Recorder) []int {
	var slots []int
	for _, c := range rec.Calls() {
		if c.Op == gputest.OpBind && strings.HasPrefix(c.Buffer, "instances#") {
			slots = append(slots, c.Slot)
		}
	}
	return slots
}

func draws(rec *gputest.Recorder) []gpu.DrawCall {
	var out []gpu.DrawCall
	for _, c := range rec.Calls() {
		if c.Op == gputest.OpDraw {
			out = append(out, c.Draw)
		}
	}
	return out
}

func TestRenderablesShareModels(t *testing.T) {
	reg := buffers.NewRegistry()
	g := square(t)

	a := NewRenderable(reg, buffers.KindMesh, g)
	b := NewRenderable(reg, buffers.KindMesh, g)
	c := NewRenderable(reg, buffers.KindLine, g)
	assert.Same(t, a.Model(), b.Model())
	assert.NotSame(t, a.Model(), c.Model())
	assert.Equal(t, 2, reg.RefCount(buffers.KindMesh, g.ID()))
	assert.Equal(t, 1, reg.RefCount(buffers.KindLine, g.ID()))

	a.Destroy()
	a.Destroy()
	assert.Equal(t, 1, reg.RefCount(buffers.KindMesh, g.ID()))
	assert.True(t, a.Model().IsEmpty())

	b.Destroy()
	assert.False(t, reg.Contains(buffers.KindMesh, g.ID()))
	assert.True(t, reg.Contains(buffers.KindLine, g.ID()))
}

func TestRenderableSetGeometry(t *testing.T) {
	reg := buffers.NewRegistry()
	g1, g2 := square(t), square(t)

	r := NewRenderable(reg, buffers.KindMesh, g1)
	other := NewRenderable(reg, buffers.KindMesh, g2)
	old := r.Model()

	r.SetGeometry(g1)
	assert.Same(t, old, r.Model())
	assert.Equal(t, 1, reg.RefCount(buffers.KindMesh, g1.ID()))

	r.SetGeometry(g2)
	assert.Same(t, other.Model(), r.Model())
	assert.Equal(t, 2, reg.RefCount(buffers.KindMesh, g2.ID()))
	assert.False(t, reg.Contains(buffers.KindMesh, g1.ID()))
	assert.True(t, old.IsDisposed())

	r.SetGeometry(nil)
	assert.True(t, r.Model().IsEmpty())
	assert.Equal(t, 1, reg.RefCount(buffers.KindMesh, g2.ID()))
}

func TestRenderableNilGeometry(t *testing.T) {
	reg := buffers.NewRegistry()
	r := NewRenderable(reg, buffers.KindPoint, nil)
	assert.True(t, r.Model().IsEmpty())
	assert.Equal(t, 0, reg.Len())
	r.Destroy()
}

func TestPrepareUploadsSharedModelsOnce(t *testing.T) {
	reg := buffers.NewRegistry()
	rec := gputest.NewRecorder()
	g := square(t)
	outline := geometry.Outline(squarePoints, 0)

	renderables := []*Renderable{
		NewRenderable(reg, buffers.KindMesh, g),
		NewRenderable(reg, buffers.KindMesh, g),
		NewRenderable(reg, buffers.KindLine, outline),
	}
	r := NewRenderer(nil)

	require.NoError(t, r.Prepare(rec, renderables))
	assert.Equal(t, 2, r.Stats().ModelsUpdated)
	assert.Equal(t, 0, r.Stats().PrepareErrors)
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, "mesh.vertices"))
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, "line.indices"))

	// Nothing changed since.
	require.NoError(t, r.Prepare(rec, renderables))
	assert.Equal(t, 0, r.Stats().ModelsUpdated)

	g.SetColors(make([]geom.Vec4, g.VertexCount()))
	require.NoError(t, r.Prepare(rec, renderables))
	assert.Equal(t, 1, r.Stats().ModelsUpdated)
	assert.Equal(t, 2, rec.Count(gputest.OpUpload, "mesh.colors"))
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, "mesh.vertices"))
}

func TestPrepareJoinsErrors(t *testing.T) {
	reg := buffers.NewRegistry()
	rec := gputest.NewRecorder()
	boom := errors.New("boom")
	rec.FailUploads = boom

	renderables := []*Renderable{
		NewRenderable(reg, buffers.KindMesh, square(t)),
		NewRenderable(reg, buffers.KindPoint, square(t)),
	}
	r := NewRenderer(nil)

	err := r.Prepare(rec, renderables)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, r.Stats().PrepareErrors)
	for _, rd := range renderables {
		assert.True(t, rd.Model().Dirty())
	}

	rec.FailUploads = nil
	require.NoError(t, r.Prepare(rec, renderables))
	assert.Equal(t, 2, r.Stats().ModelsUpdated)
	for _, rd := range renderables {
		assert.False(t, rd.Model().Dirty())
	}
}

func TestDraw(t *testing.T) {
	reg := buffers.NewRegistry()
	rec := gputest.NewRecorder()
	g := square(t)
	outline := geometry.Outline(squarePoints, 0)

	fill := NewRenderable(reg, buffers.KindMesh, g)
	fill.SetTransforms(geom.IdentityMat4(), geom.TranslateScale(geom.V3(2, 0, 0), 1))
	edges := NewRenderable(reg, buffers.KindLine, outline)
	edges.SetTransforms(geom.IdentityMat4())
	idle := NewRenderable(reg, buffers.KindMesh, g) // no transforms
	renderables := []*Renderable{fill, edges, idle}

	p := &recordingPipeline{}
	r := NewRenderer(p)
	r.SetView(200, 100, 1, 0, 0)

	// Nothing uploaded yet.
	require.NoError(t, r.Draw(rec, renderables))
	assert.Equal(t, 0, r.Stats().DrawCalls)
	assert.Equal(t, 3, r.Stats().Skipped)
	assert.Empty(t, draws(rec))

	require.NoError(t, r.Prepare(rec, renderables))
	rec.Forget()
	p.used = nil

	require.NoError(t, r.Draw(rec, renderables))
	assert.Equal(t, 2, r.Stats().DrawCalls)
	assert.Equal(t, 1, r.Stats().Skipped)
	assert.Equal(t, []gpu.Primitive{gpu.Triangles, gpu.Lines}, p.used)

	// Mesh streams take locations 0-4 and lines 0-1; transforms follow.
	assert.Equal(t, []int{5, 2}, instanceBinds(rec))
	assert.Equal(t, []gpu.DrawCall{
		{Primitive: gpu.Triangles, Indexed: true, Count: 6, Instances: 2},
		{Primitive: gpu.Lines, Indexed: true, Count: 8, Instances: 1},
	}, draws(rec))

	// Instance transforms upload only when they change.
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, fill.instances.Buffer().Name))
	rec.Forget()
	require.NoError(t, r.Draw(rec, renderables))
	assert.Equal(t, 0, rec.Count(gputest.OpUpload, ""))
}

func TestDrawDestroyedRenderableIsSkipped(t *testing.T) {
	reg := buffers.NewRegistry()
	rec := gputest.NewRecorder()

	rd := NewRenderable(reg, buffers.KindMesh, square(t))
	rd.SetTransforms(geom.IdentityMat4())
	r := NewRenderer(nil)
	require.NoError(t, r.Prepare(rec, []*Renderable{rd}))

	rd.Destroy()
	require.NoError(t, r.Draw(rec, []*Renderable{rd}))
	assert.Equal(t, 0, r.Stats().DrawCalls)
	assert.Equal(t, 1, r.Stats().Skipped)
}

func TestTransformMatrix(t *testing.T) {
	apply := func(m geom.Mat4, x, y float32) (float32, float32) {
		return m[0]*x + m[4]*y + m[12], m[1]*x + m[5]*y + m[13]
	}

	r := NewRenderer(nil)
	r.SetView(200, 100, 1, 0, 0)
	m := r.computeTransformMatrix()

	x, y := apply(m, 0, 0)
	assert.InDelta(t, -1, x, 1e-6)
	assert.InDelta(t, 1, y, 1e-6)
	x, y = apply(m, 200, 100)
	assert.InDelta(t, 1, x, 1e-6)
	assert.InDelta(t, -1, y, 1e-6)

	// Zooming keeps the viewport center fixed.
	r.SetView(200, 100, 2, 0, 0)
	x, y = apply(r.computeTransformMatrix(), 100, 50)
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	// Panning shifts in screen pixels.
	r.SetView(200, 100, 1, 100, 0)
	x, _ = apply(r.computeTransformMatrix(), 0, 0)
	assert.InDelta(t, 0, x, 1e-6)
}
