package geom

import "github.com/chewxy/math32"

// Vec2 is a float32 2-vector (texture coordinates).
type Vec2 struct{ X, Y float32 }

// Vec3 is a float32 3-vector (positions, normals, tangents).
type Vec3 struct{ X, Y, Z float32 }

// Vec4 is a float32 4-vector (RGBA colors).
type Vec4 struct{ X, Y, Z, W float32 }

// Mat4 is a column-major 4x4 matrix, as uploaded to per-instance buffers.
type Mat4 [16]float32

func V2(x, y float32) Vec2       { return Vec2{x, y} }
func V3(x, y, z float32) Vec3    { return Vec3{x, y, z} }
func V4(x, y, z, w float32) Vec4 { return Vec4{x, y, z, w} }

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float32   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Length() float32      { return math32.Sqrt(a.Dot(a)) }
func (a Vec3) Min(b Vec3) Vec3      { return Vec3{min(a.X, b.X), min(a.Y, b.Y), min(a.Z, b.Z)} }
func (a Vec3) Max(b Vec3) Vec3      { return Vec3{max(a.X, b.X), max(a.Y, b.Y), max(a.Z, b.Z)} }
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Normalize returns a unit vector in the direction of a, or the zero vector
// when a has (near) zero length.
func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l < 1e-12 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Box3 is an axis-aligned 3D bounding box. The zero value is empty.
type Box3 struct {
	Min, Max Vec3
	Valid    bool
}

// Expand grows the box to include p.
func (b Box3) Expand(p Vec3) Box3 {
	if !b.Valid {
		return Box3{Min: p, Max: p, Valid: true}
	}
	return Box3{Min: b.Min.Min(p), Max: b.Max.Max(p), Valid: true}
}

// Center returns the midpoint of the box.
func (b Box3) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

// IdentityMat4 returns the 4x4 identity.
func IdentityMat4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// TranslateScale returns a matrix that scales uniformly by s then translates by t.
func TranslateScale(t Vec3, s float32) Mat4 {
	return Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		t.X, t.Y, t.Z, 1,
	}
}
