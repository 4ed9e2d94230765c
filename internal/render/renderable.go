package render

import (
	"fmt"
	"sync/atomic"

	"github.com/irfansharif/tessera/internal/buffers"
	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/geometry"
	"github.com/irfansharif/tessera/internal/gpu"
)

// instanceAttrs lays out a column-major mat4 as four vec4 attributes.
var instanceAttrs = gpu.Layout([]string{"model0", "model1", "model2", "model3"}, 4, 4, 4, 4)

// Renderable draws one geometry with a set of per-instance transforms. The
// geometry's buffers come from the registry and are shared with every other
// renderable drawing the same geometry as the same kind; the transforms are
// owned by the renderable.
type Renderable struct {
	kind      buffers.Kind
	registry  *buffers.Registry
	model     *buffers.Model
	instances *buffers.ElementsBuffer[geom.Mat4]
	destroyed bool
}

var renderableIDs atomic.Int64

// NewRenderable registers g with the registry as kind. A nil g is allowed and
// draws nothing until SetGeometry.
func NewRenderable(reg *buffers.Registry, kind buffers.Kind, g *geometry.Geometry) *Renderable {
	return &Renderable{
		kind:      kind,
		registry:  reg,
		model:     reg.Register(kind, g),
		instances: buffers.NewElementsBuffer[geom.Mat4](fmt.Sprintf("instances#%d", renderableIDs.Add(1)), instanceAttrs...),
	}
}

// SetGeometry switches to g, releasing the previous geometry's buffers if
// this was their last user.
func (r *Renderable) SetGeometry(g *geometry.Geometry) {
	if r.destroyed || r.model.Geometry() == g {
		return
	}
	next := r.registry.Register(r.kind, g)
	r.model.Dispose()
	r.model = next
}

// SetTransforms replaces the per-instance transforms.
func (r *Renderable) SetTransforms(transforms ...geom.Mat4) {
	r.instances.SetElements(transforms)
}

// Kind returns the buffer kind the renderable draws with.
func (r *Renderable) Kind() buffers.Kind { return r.kind }

// Model returns the shared buffer model.
func (r *Renderable) Model() *buffers.Model { return r.model }

// Instances returns the number of transforms drawn.
func (r *Renderable) Instances() int { return r.instances.ElementCount() }

// Destroy releases the shared buffers and the instance buffer. Later calls
// are no-ops.
func (r *Renderable) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.model.Dispose()
	r.model = buffers.Empty()
	r.instances.Release()
}
