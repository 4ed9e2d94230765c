package buffers

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/geometry"
	"github.com/irfansharif/tessera/internal/gpu"
	"github.com/irfansharif/tessera/internal/gpu/gputest"
	"github.com/irfansharif/tessera/internal/memory"
)

func states(m *Model) map[string]StreamState {
	out := make(map[string]StreamState)
	for _, s := range m.Streams() {
		out[s.Name] = s.State
	}
	return out
}

func decodeIndices(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func TestFirstUpdateUploadsEveryStream(t *testing.T) {
	rec := gputest.NewRecorder()
	m := NewMeshModel(square(t))
	for _, s := range m.Streams() {
		assert.Equal(t, Uninitialized, s.State, s.Name)
	}

	changed, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []int{4 * 36}, rec.Uploads("mesh.vertices"))
	assert.Equal(t, []int{4 * 8}, rec.Uploads("mesh.texcoords"))
	assert.Equal(t, []int{6 * 4}, rec.Uploads("mesh.indices"))
	for _, s := range m.Streams() {
		assert.Equal(t, Clean, s.State, s.Name)
	}
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, 6, m.IndexCount())

	rec.Forget()
	changed, err = m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, rec.Calls())
}

func TestColorChangeUploadsOnlyColors(t *testing.T) {
	rec := gputest.NewRecorder()
	g := square(t)
	m := NewMeshModel(g)
	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	rec.Forget()

	g.SetColors([]geom.Vec4{{X: 1, W: 1}, {Y: 1, W: 1}, {Z: 1, W: 1}, {W: 1}})
	assert.Equal(t, map[string]StreamState{
		"mesh.vertices":  Clean,
		"mesh.texcoords": Clean,
		"mesh.colors":    Dirty,
		"mesh.indices":   Clean,
	}, states(m))

	changed, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []int{4 * 16}, rec.Uploads("mesh.colors"))
	assert.Equal(t, 0, rec.Count(gputest.OpUpload, "mesh.vertices"))
	assert.Equal(t, 0, rec.Count(gputest.OpUpload, "mesh.texcoords"))
	assert.Equal(t, 0, rec.Count(gputest.OpUpload, "mesh.indices"))
}

func TestStreamDeclaredAttributes(t *testing.T) {
	rec := gputest.NewRecorder()
	g := square(t)
	m := NewMeshModel(g)
	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)

	for _, attr := range []geometry.Attribute{geometry.Positions, geometry.Normals, geometry.Tangents} {
		rec.Forget()
		g.Touch(attr)
		_, err := m.UpdateBuffers(rec)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Count(gputest.OpUpload, ""), attr)
		assert.Equal(t, 1, rec.Count(gputest.OpUpload, "mesh.vertices"), attr)
	}
}

func TestMissingColorsUploadZeroLength(t *testing.T) {
	rec := gputest.NewRecorder()
	g := square(t)
	require.Empty(t, g.Colors())
	m := NewMeshModel(g)

	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.Equal(t, []int{4 * 36}, rec.Uploads("mesh.vertices"))
	assert.Equal(t, []int{0}, rec.Uploads("mesh.colors"))

	// Clearing a stream replaces the stale upload with an empty one.
	g.SetColors([]geom.Vec4{{}, {}, {}, {}})
	_, err = m.UpdateBuffers(rec)
	require.NoError(t, err)
	g.SetColors(nil)
	_, err = m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 64, 0}, rec.Uploads("mesh.colors"))
}

func TestUploadFailureKeepsStreamDirty(t *testing.T) {
	rec := gputest.NewRecorder()
	boom := errors.New("out of memory")
	rec.FailUploads, rec.FailBuffer = boom, "mesh.colors"
	m := NewMeshModel(square(t))

	changed, err := m.UpdateBuffers(rec)
	assert.ErrorIs(t, err, boom)
	assert.True(t, changed)
	assert.Equal(t, map[string]StreamState{
		"mesh.vertices":  Clean,
		"mesh.texcoords": Clean,
		"mesh.colors":    Uninitialized,
		"mesh.indices":   Uninitialized,
	}, states(m))

	rec.FailUploads = nil
	changed, err = m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, "mesh.vertices"))
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, "mesh.colors"))
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, "mesh.indices"))
}

func TestFailedUploadKeepsPreviousContents(t *testing.T) {
	rec := gputest.NewRecorder()
	g := square(t)
	m := NewLineModel(g)
	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	before := m.Streams()

	rec.FailUploads = errors.New("device lost")
	g.SetPositions(nil)
	_, err = m.UpdateBuffers(rec)
	require.Error(t, err)
	after := m.Streams()
	assert.Equal(t, before[0].Count, after[0].Count)
	assert.Equal(t, Dirty, after[0].State)
}

func TestLineModelGeneratesStripIndices(t *testing.T) {
	rec := gputest.NewRecorder()
	g := geometry.New()
	g.SetPositions([]geom.Vec3{{}, {X: 1}, {X: 1, Y: 1}})
	m := NewLineModel(g)

	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 1, 2}, decodeIndices(rec.Contents(m.index.buf)))
	assert.Equal(t, gpu.DrawCall{Primitive: gpu.Lines, Indexed: true, Count: 4, Instances: 1}, m.DrawCall(1))

	// Growing the strip regenerates indices even though Indices never changed.
	g.SetPositions([]geom.Vec3{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}})
	_, err = m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 1, 2, 2, 3}, decodeIndices(rec.Contents(m.index.buf)))

	// Explicit indices win.
	g.SetIndices([]uint32{0, 3})
	_, err = m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 3}, decodeIndices(rec.Contents(m.index.buf)))
}

func TestLineModelSinglePointHasNoIndices(t *testing.T) {
	rec := gputest.NewRecorder()
	g := geometry.New()
	g.SetPositions([]geom.Vec3{{}})
	m := NewLineModel(g)
	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, rec.Uploads("line.indices"))
	assert.Equal(t, 0, m.IndexCount())
}

func TestMeshVerticesInterleaved(t *testing.T) {
	rec := gputest.NewRecorder()
	g := geometry.New()
	g.SetPositions([]geom.Vec3{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}})
	g.SetNormals([]geom.Vec3{{Z: 1}}) // shorter than positions
	m := NewMeshModel(g)

	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	want := gpu.Bytes([]MeshVertex{
		{Position: geom.V3(1, 2, 3), Normal: geom.V3(0, 0, 1)},
		{Position: geom.V3(4, 5, 6)},
	})
	assert.Equal(t, want, rec.Contents(m.vertices.buf))
}

func TestStagingReusedWithinBoundGoroutine(t *testing.T) {
	rec := gputest.NewRecorder()
	g := square(t)
	m := NewMeshModel(g)

	memory.Bind(func() {
		_, err := m.UpdateBuffers(rec)
		require.NoError(t, err)
		g.SetPositions(g.Positions())
		_, err = m.UpdateBuffers(rec)
		require.NoError(t, err)

		p, ok := meshStaging.Pool()
		require.True(t, ok)
		stats := p.Stats()
		assert.Equal(t, int64(2), stats.Requests)
		assert.Equal(t, int64(1), stats.Allocations)
	})
}

func TestAttachBuffers(t *testing.T) {
	rec := gputest.NewRecorder()
	m := NewMeshModel(square(t))

	slot := 0
	ok, err := m.AttachBuffers(rec, &slot)
	require.NoError(t, err)
	assert.False(t, ok, "nothing uploaded yet")
	assert.Equal(t, 0, slot)

	_, err = m.UpdateBuffers(rec)
	require.NoError(t, err)
	rec.Forget()

	slot = 2
	ok, err = m.AttachBuffers(rec, &slot)
	require.NoError(t, err)
	assert.True(t, ok)
	// position, normal, tangent, texcoord, color.
	assert.Equal(t, 7, slot)
	assert.Equal(t, 4, rec.Count(gputest.OpBind, ""))
	calls := rec.Calls()
	assert.Equal(t, "mesh.vertices", calls[0].Buffer)
	assert.Equal(t, 2, calls[0].Slot)
	assert.Equal(t, 5, calls[1].Slot)
	assert.Equal(t, 6, calls[2].Slot)
}

func TestConcurrentChangesAndUpdates(t *testing.T) {
	rec := gputest.NewRecorder()
	g := square(t)
	m := NewMeshModel(g)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.SetColors(make([]geom.Vec4, i))
		}()
		go func() {
			defer wg.Done()
			memory.Bind(func() {
				_, err := m.UpdateBuffers(rec)
				assert.NoError(t, err)
			})
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, a final pass leaves every stream
	// matching the geometry.
	_, err := m.UpdateBuffers(rec)
	require.NoError(t, err)
	assert.False(t, m.Dirty())
	assert.Equal(t, len(g.Colors())*16, m.Streams()[2].SizeBytes)
}

func TestDirectModelDispose(t *testing.T) {
	g := square(t)
	m := NewPointModel(g)
	require.Equal(t, 1, g.Subscribers())

	var n int
	m.OnDisposed(func() { n++ })
	m.Dispose()
	m.Dispose()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, g.Subscribers())

	// Changes after disposal are ignored.
	g.SetColors(nil)
	assert.Equal(t, Disposed, m.Streams()[1].State)
}
