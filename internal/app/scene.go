package app

import (
	"math"
	"math/rand"
	"sort"

	"github.com/irfansharif/tessera/internal/buffers"
	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/geometry"
	"github.com/irfansharif/tessera/internal/palette"
	"github.com/irfansharif/tessera/internal/render"
)

const (
	minSides = 3
	maxSides = 9
)

// ShapeID identifies a shape.
type ShapeID int

// InstanceID identifies a placed instance.
type InstanceID int

// Shape is a polygon whose fill and outline geometries are shared by every
// instance placed from it.
type Shape struct {
	ID      ShapeID
	Sides   int
	Seed    int64 // seed for the current outline jitter and palette
	Fill    *geometry.Geometry
	Outline *geometry.Geometry
	Palette palette.Palette

	instances int
}

// Instance places a shape in the world. Its renderables register the shape's
// geometries with the scene's registry, so instances of the same shape share
// buffers.
type Instance struct {
	ID    InstanceID
	Shape *Shape
	Pos   geom.Point // world position
	Scale float64    // radius in world units

	fill, edges *render.Renderable
}

func (in *Instance) transform() geom.Mat4 {
	return geom.TranslateScale(geom.V3(float32(in.Pos.X), float32(in.Pos.Y), 0), float32(in.Scale))
}

// Move repositions the instance.
func (in *Instance) Move(pos geom.Point) {
	in.Pos = pos
	t := in.transform()
	in.fill.SetTransforms(t)
	in.edges.SetTransforms(t)
}

// Scene manages shapes and their instances across the canvas.
type Scene struct {
	registry *buffers.Registry

	shapes    map[ShapeID]*Shape
	instances map[InstanceID]*Instance

	currentID   InstanceID // -1 when none
	currentSeed int64
	nextShape   ShapeID
	nextID      InstanceID
}

// NewScene creates an empty scene whose renderables register with reg.
func NewScene(reg *buffers.Registry, seed int64) *Scene {
	return &Scene{
		registry:    reg,
		shapes:      make(map[ShapeID]*Shape),
		instances:   make(map[InstanceID]*Instance),
		currentID:   -1,
		currentSeed: seed,
	}
}

// IncrementSeed increments the seed by 1 and returns it.
func (s *Scene) IncrementSeed() int64 {
	s.currentSeed++
	return s.currentSeed
}

// shapePoints returns a regular polygon with unit radius whose vertices are
// jittered radially by up to 25%, deterministically from seed.
func shapePoints(sides int, seed int64) []geom.Point {
	r := rand.New(rand.NewSource(seed))
	phase := r.Float64() * 2 * math.Pi
	points := make([]geom.Point, sides)
	for i := range points {
		angle := phase + 2*math.Pi*float64(i)/float64(sides)
		radius := 0.75 + 0.25*r.Float64()
		points[i] = geom.MakePoint(radius*math.Cos(angle), radius*math.Sin(angle))
	}
	return points
}

// AddShape creates a new shape with the given number of sides (random when
// sides is 0) and places one instance of it at pos.
func (s *Scene) AddShape(sides int, pos geom.Point, scale float64) (*Instance, error) {
	seed := s.IncrementSeed()
	r := rand.New(rand.NewSource(seed))
	if sides == 0 {
		sides = minSides + r.Intn(maxSides-minSides+1)
	}
	sides = min(max(sides, minSides), maxSides)

	points := shapePoints(sides, seed)
	fill, err := geometry.FromPolygon(points, 0)
	if err != nil {
		return nil, err
	}
	shape := &Shape{
		ID:      s.nextShape,
		Sides:   sides,
		Seed:    seed,
		Fill:    fill,
		Outline: geometry.Outline(points, 0),
		Palette: palette.RandomPalette(r),
	}
	s.nextShape++
	s.applyColors(shape)
	s.shapes[shape.ID] = shape
	return s.place(shape, pos, scale), nil
}

func (s *Scene) applyColors(shape *Shape) {
	shape.Fill.SetColors(shape.Palette.Gradient(shape.Fill.VertexCount()))
	shape.Outline.SetColors(palette.Solid(shape.Palette[0], shape.Outline.VertexCount()))
}

func (s *Scene) place(shape *Shape, pos geom.Point, scale float64) *Instance {
	in := &Instance{
		ID:    s.nextID,
		Shape: shape,
		Scale: scale,
		fill:  render.NewRenderable(s.registry, buffers.KindMesh, shape.Fill),
		edges: render.NewRenderable(s.registry, buffers.KindLine, shape.Outline),
	}
	s.nextID++
	shape.instances++
	in.Move(pos)
	s.instances[in.ID] = in
	s.currentID = in.ID
	return in
}

// Duplicate places another instance of id's shape offset by (dx, dy). The
// new instance shares the shape's buffers.
func (s *Scene) Duplicate(id InstanceID, dx, dy float64) (*Instance, bool) {
	src, ok := s.instances[id]
	if !ok {
		return nil, false
	}
	return s.place(src.Shape, src.Pos.Add(geom.MakePoint(dx, dy)), src.Scale), true
}

// Remove destroys an instance. The shape is forgotten with its last
// instance, which also releases its buffers.
func (s *Scene) Remove(id InstanceID) bool {
	in, ok := s.instances[id]
	if !ok {
		return false
	}
	in.fill.Destroy()
	in.edges.Destroy()
	delete(s.instances, id)
	in.Shape.instances--
	if in.Shape.instances == 0 {
		delete(s.shapes, in.Shape.ID)
	}
	if s.currentID == id {
		s.currentID = -1
	}
	return true
}

// Recolor picks a new palette for the shape. Only color streams change.
func (s *Scene) Recolor(shape *Shape) {
	r := rand.New(rand.NewSource(s.IncrementSeed()))
	shape.Palette = palette.Shimmered(palette.RandomPalette(r), r)
	s.applyColors(shape)
}

// Reshape re-jitters the shape's outline with a new seed, keeping its side
// count so the color streams stay valid.
func (s *Scene) Reshape(shape *Shape) error {
	seed := s.IncrementSeed()
	points := shapePoints(shape.Sides, seed)
	if err := shape.Fill.SetPolygon(points, 0); err != nil {
		return err
	}
	outline := geometry.Outline(points, 0)
	shape.Outline.SetPositions(outline.Positions())
	shape.Seed = seed
	return nil
}

// Instances returns all instances sorted by ID (ascending).
func (s *Scene) Instances() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, in := range s.instances {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shapes returns the number of live shapes.
func (s *Scene) Shapes() int { return len(s.shapes) }

// Renderables returns every instance's renderables, fills before outlines so
// edges draw on top.
func (s *Scene) Renderables() []*render.Renderable {
	instances := s.Instances()
	out := make([]*render.Renderable, 0, 2*len(instances))
	for _, in := range instances {
		out = append(out, in.fill)
	}
	for _, in := range instances {
		out = append(out, in.edges)
	}
	return out
}

// Current returns the selected instance, or nil.
func (s *Scene) Current() *Instance {
	return s.instances[s.currentID]
}

// SetCurrent selects in (nil clears the selection).
func (s *Scene) SetCurrent(in *Instance) {
	if in == nil {
		s.currentID = -1
		return
	}
	s.currentID = in.ID
}

// FindClosest returns all instances sorted by distance to the given point
// (closest first). For instances at equal distance, sorts by ID (highest
// first).
func (s *Scene) FindClosest(x, y float64) []*Instance {
	p := geom.MakePoint(x, y)
	out := s.Instances()
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := geom.Dist(out[i].Pos, p), geom.Dist(out[j].Pos, p)
		if math.Abs(di-dj) < 1e-4 {
			return out[i].ID > out[j].ID
		}
		return di < dj
	})
	return out
}

// IterInstance moves the selection to the next or previous instance in ID
// order, wrapping around.
func (s *Scene) IterInstance(next bool) *Instance {
	instances := s.Instances()
	if len(instances) == 0 {
		s.currentID = -1
		return nil
	}

	pos := -1
	for i, in := range instances {
		if in.ID == s.currentID {
			pos = i
			break
		}
	}

	var newPos int
	switch {
	case pos == -1 && next:
		newPos = 0
	case pos == -1:
		newPos = len(instances) - 1
	case next:
		newPos = (pos + 1) % len(instances)
	default:
		newPos = (pos - 1 + len(instances)) % len(instances)
	}
	s.currentID = instances[newPos].ID
	return instances[newPos]
}

// Clear removes every instance.
func (s *Scene) Clear() {
	for id := range s.instances {
		s.Remove(id)
	}
}
