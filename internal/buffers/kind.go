package buffers

import (
	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/geometry"
	"github.com/irfansharif/tessera/internal/gpu"
	"github.com/irfansharif/tessera/internal/memory"
)

// Kind distinguishes independently cached buffer flavors built from the same
// geometry.
type Kind uint8

const (
	KindMesh  Kind = iota // triangles: interleaved vertices, texcoords, colors, indices
	KindLine              // line segments: positions, colors, indices
	KindPoint             // points: positions, colors
)

var kinds = []Kind{KindMesh, KindLine, KindPoint}

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindLine:
		return "line"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Key identifies a shared model.
type Key struct {
	Kind     Kind
	Geometry geometry.ID
}

// MeshVertex is the interleaved per-vertex layout of a mesh's vertex stream.
type MeshVertex struct {
	Position geom.Vec3
	Normal   geom.Vec3
	Tangent  geom.Vec3
}

// Staging pools used to assemble upload payloads. They are goroutine-local;
// callers that upload from several goroutines bind each with memory.Bind.
var (
	meshStaging  = memory.NewLocal[MeshVertex](nil)
	indexStaging = memory.NewLocal[uint32](nil)
)

// NewMeshModel builds a triangle model for g with streams for interleaved
// position/normal/tangent, texture coordinates, colors and indices.
func NewMeshModel(g *geometry.Geometry) *Model {
	m := newModel(KindMesh, g, gpu.Triangles)
	m.vertices = m.addStream("vertices", gpu.TargetVertex, gpu.SizeOf[MeshVertex](), uploadMeshVertices,
		[]geometry.Attribute{geometry.Positions, geometry.Normals, geometry.Tangents},
		gpu.Layout([]string{"position", "normal", "tangent"}, 3, 3, 3)...)
	m.addStream("texcoords", gpu.TargetVertex, gpu.SizeOf[geom.Vec2](), uploadTexCoords,
		[]geometry.Attribute{geometry.TextureCoordinates},
		gpu.Layout([]string{"texcoord"}, 2)...)
	m.addStream("colors", gpu.TargetVertex, gpu.SizeOf[geom.Vec4](), uploadColors,
		[]geometry.Attribute{geometry.Colors},
		gpu.Layout([]string{"color"}, 4)...)
	m.index = m.addStream("indices", gpu.TargetIndex, 4, uploadIndices,
		[]geometry.Attribute{geometry.Indices})
	m.subscribe()
	return m
}

// NewLineModel builds a line model for g. Without explicit indices the
// positions are joined as a strip.
func NewLineModel(g *geometry.Geometry) *Model {
	m := newModel(KindLine, g, gpu.Lines)
	m.vertices = m.addStream("positions", gpu.TargetVertex, gpu.SizeOf[geom.Vec3](), uploadPositions,
		[]geometry.Attribute{geometry.Positions},
		gpu.Layout([]string{"position"}, 3)...)
	m.addStream("colors", gpu.TargetVertex, gpu.SizeOf[geom.Vec4](), uploadColors,
		[]geometry.Attribute{geometry.Colors},
		gpu.Layout([]string{"color"}, 4)...)
	// Generated strip indices depend on the vertex count.
	m.index = m.addStream("indices", gpu.TargetIndex, 4, uploadLineIndices,
		[]geometry.Attribute{geometry.Indices, geometry.Positions})
	m.subscribe()
	return m
}

// NewPointModel builds an unindexed point model for g.
func NewPointModel(g *geometry.Geometry) *Model {
	m := newModel(KindPoint, g, gpu.Points)
	m.vertices = m.addStream("positions", gpu.TargetVertex, gpu.SizeOf[geom.Vec3](), uploadPositions,
		[]geometry.Attribute{geometry.Positions},
		gpu.Layout([]string{"position"}, 3)...)
	m.addStream("colors", gpu.TargetVertex, gpu.SizeOf[geom.Vec4](), uploadColors,
		[]geometry.Attribute{geometry.Colors},
		gpu.Layout([]string{"color"}, 4)...)
	m.subscribe()
	return m
}

// newModelFor is the default Factory.
func newModelFor(kind Kind, g *geometry.Geometry) *Model {
	switch kind {
	case KindMesh:
		return NewMeshModel(g)
	case KindLine:
		return NewLineModel(g)
	case KindPoint:
		return NewPointModel(g)
	default:
		return nil
	}
}

func uploadMeshVertices(ctx gpu.Context, g *geometry.Geometry, b *gpu.Buffer) error {
	positions, normals, tangents := g.Positions(), g.Normals(), g.Tangents()
	n := len(positions)
	verts := meshStaging.GetBuffer(n)[:n]
	for i, p := range positions {
		v := MeshVertex{Position: p}
		if i < len(normals) {
			v.Normal = normals[i]
		}
		if i < len(tangents) {
			v.Tangent = tangents[i]
		}
		verts[i] = v
	}
	return gpu.Upload(ctx, b, verts)
}

func uploadPositions(ctx gpu.Context, g *geometry.Geometry, b *gpu.Buffer) error {
	return gpu.Upload(ctx, b, g.Positions())
}

func uploadTexCoords(ctx gpu.Context, g *geometry.Geometry, b *gpu.Buffer) error {
	return gpu.Upload(ctx, b, g.TextureCoordinates())
}

func uploadColors(ctx gpu.Context, g *geometry.Geometry, b *gpu.Buffer) error {
	return gpu.Upload(ctx, b, g.Colors())
}

func uploadIndices(ctx gpu.Context, g *geometry.Geometry, b *gpu.Buffer) error {
	return gpu.Upload(ctx, b, g.Indices())
}

func uploadLineIndices(ctx gpu.Context, g *geometry.Geometry, b *gpu.Buffer) error {
	if indices := g.Indices(); len(indices) > 0 {
		return gpu.Upload(ctx, b, indices)
	}
	segments := g.VertexCount() - 1
	if segments < 1 {
		return gpu.Upload[uint32](ctx, b, nil)
	}
	indices := indexStaging.GetBuffer(2 * segments)[:2*segments]
	for i := range segments {
		indices[2*i] = uint32(i)
		indices[2*i+1] = uint32(i + 1)
	}
	return gpu.Upload(ctx, b, indices)
}
