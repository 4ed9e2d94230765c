package geometry

import (
	"fmt"

	"github.com/rclancey/earcut"

	"github.com/irfansharif/tessera/internal/geom"
)

// Triangulate returns triangle indices for a simple polygon using the earcut
// algorithm. Indices refer to positions in polygonPoints.
func Triangulate(polygonPoints []geom.Point) ([]uint32, error) {
	if len(polygonPoints) < 3 {
		return nil, fmt.Errorf("degenerate polygon (%d vertices < 3)", len(polygonPoints))
	}

	// Format: [x0, y0, x1, y1, ..., xn, yn]
	vertexCoords := make([]float64, len(polygonPoints)*2)
	for i, point := range polygonPoints {
		vertexCoords[i*2] = point.X
		vertexCoords[i*2+1] = point.Y
	}

	triangleIndices, err := earcut.Earcut(vertexCoords, nil /* holeIndices */, 2 /* dim */)
	if err != nil {
		return nil, fmt.Errorf("triangulation failed for %d-vertex polygon: %w", len(polygonPoints), err)
	}
	if len(triangleIndices)%3 != 0 {
		return nil, fmt.Errorf("invalid triangle count (indices: %d, not divisible by 3)", len(triangleIndices))
	}

	indices := make([]uint32, len(triangleIndices))
	for i, idx := range triangleIndices {
		indices[i] = uint32(idx)
	}
	return indices, nil
}

// FromPolygon builds a flat mesh geometry in the z plane from a polygon
// outline: positions, +Z normals, +X tangents, texture coordinates spanning
// the polygon's bounds, and earcut triangle indices.
func FromPolygon(points []geom.Point, z float32) (*Geometry, error) {
	g := New()
	if err := g.SetPolygon(points, z); err != nil {
		return nil, err
	}
	return g, nil
}

// SetPolygon replaces the geometry's streams with a triangulated polygon.
// Colors are left untouched.
func (g *Geometry) SetPolygon(points []geom.Point, z float32) error {
	indices, err := Triangulate(points)
	if err != nil {
		return err
	}

	minP, maxP := points[0], points[0]
	for _, p := range points[1:] {
		minP = geom.MakePoint(min(minP.X, p.X), min(minP.Y, p.Y))
		maxP = geom.MakePoint(max(maxP.X, p.X), max(maxP.Y, p.Y))
	}
	w, h := maxP.X-minP.X, maxP.Y-minP.Y
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}

	positions := make([]geom.Vec3, len(points))
	normals := make([]geom.Vec3, len(points))
	tangents := make([]geom.Vec3, len(points))
	texCoords := make([]geom.Vec2, len(points))
	for i, p := range points {
		positions[i] = geom.V3(float32(p.X), float32(p.Y), z)
		normals[i] = geom.V3(0, 0, 1)
		tangents[i] = geom.V3(1, 0, 0)
		texCoords[i] = geom.V2(float32((p.X-minP.X)/w), float32((p.Y-minP.Y)/h))
	}

	g.SetPositions(positions)
	g.SetNormals(normals)
	g.SetTangents(tangents)
	g.SetTextureCoordinates(texCoords)
	g.SetIndices(indices)
	return nil
}

// Outline builds a closed line geometry tracing points, with segment indices
// (i, i+1) wrapping back to the first point.
func Outline(points []geom.Point, z float32) *Geometry {
	g := New()
	positions := make([]geom.Vec3, len(points))
	for i, p := range points {
		positions[i] = geom.V3(float32(p.X), float32(p.Y), z)
	}
	var indices []uint32
	if len(points) >= 2 {
		indices = make([]uint32, 0, len(points)*2)
		for i := range points {
			indices = append(indices, uint32(i), uint32((i+1)%len(points)))
		}
	}
	g.SetPositions(positions)
	g.SetIndices(indices)
	return g
}
