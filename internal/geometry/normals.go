package geometry

import "github.com/irfansharif/tessera/internal/geom"

// ComputeNormals derives per-vertex normals from the triangle list, weighting
// each face normal by its area. Vertices not referenced by any triangle get a
// zero normal. It is a no-op when there are no positions.
func (g *Geometry) ComputeNormals() {
	positions := g.Positions()
	indices := g.Indices()
	if len(positions) == 0 {
		return
	}

	normals := make([]geom.Vec3, len(positions))
	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		if int(i0) >= len(positions) || int(i1) >= len(positions) || int(i2) >= len(positions) {
			continue
		}
		p0, p1, p2 := positions[i0], positions[i1], positions[i2]
		// Unnormalized cross product: its length is twice the face area.
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		normals[i0] = normals[i0].Add(n)
		normals[i1] = normals[i1].Add(n)
		normals[i2] = normals[i2].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	g.SetNormals(normals)
}
