// Package gldevice implements gpu.Context on OpenGL 4.1 core.
//
// All methods except Release must be called on the goroutine that owns the GL
// context. Release only queues the buffer for deletion; queued buffers are
// deleted by the next Collect, which the render loop calls once per frame.
package gldevice

import (
	"fmt"
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/irfansharif/tessera/internal/gpu"
)

// Context is a gpu.Context backed by the current GL context.
type Context struct {
	vao uint32

	// enabled tracks attribute arrays enabled by Bind, so Reset can disable
	// them between draws.
	enabled map[uint32]bool

	mu      sync.Mutex
	garbage []uint32
	lost    bool
}

var _ gpu.Context = (*Context)(nil)

// New creates a context and binds a vertex array object for it. The GL
// function pointers must already be loaded with gl.Init.
func New() *Context {
	c := &Context{enabled: make(map[uint32]bool)}
	gl.GenVertexArrays(1, &c.vao)
	gl.BindVertexArray(c.vao)
	return c
}

func target(t gpu.Target) uint32 {
	if t == gpu.TargetIndex {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

// Upload replaces the buffer's storage with data using DYNAMIC_DRAW.
func (c *Context) Upload(b *gpu.Buffer, data []byte) error {
	if c.isLost() {
		return gpu.ErrContextLost
	}
	if b.Handle == 0 {
		gl.GenBuffers(1, &b.Handle)
	}
	t := target(b.Target)
	gl.BindBuffer(t, b.Handle)
	// gl.Ptr panics on an empty slice.
	if len(data) == 0 {
		gl.BufferData(t, 0, nil, gl.DYNAMIC_DRAW)
	} else {
		gl.BufferData(t, len(data), gl.Ptr(data), gl.DYNAMIC_DRAW)
	}
	if t == gl.ARRAY_BUFFER {
		gl.BindBuffer(t, 0)
	}
	return checkError("upload " + b.Name)
}

// Bind points consecutive attribute locations at b's attributes. A vertex
// stream that is currently empty disables its arrays and feeds the shader a
// constant instead, so missing optional streams (texcoords, colors) do not
// read past the end of a zero-length buffer.
func (c *Context) Bind(b *gpu.Buffer, slot int) (int, error) {
	if c.isLost() {
		return 0, gpu.ErrContextLost
	}
	if b.Target == gpu.TargetIndex {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.Handle)
		return 0, checkError("bind " + b.Name)
	}

	if b.Count() == 0 {
		for i := range b.Attrs {
			loc := uint32(slot + i)
			gl.DisableVertexAttribArray(loc)
			delete(c.enabled, loc)
			gl.VertexAttrib4f(loc, 1, 1, 1, 1)
		}
		return len(b.Attrs), checkError("bind empty " + b.Name)
	}

	divisor := uint32(0)
	if b.Target == gpu.TargetInstance {
		divisor = 1
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.Handle)
	for i, a := range b.Attrs {
		loc := uint32(slot + i)
		gl.EnableVertexAttribArray(loc)
		c.enabled[loc] = true
		gl.VertexAttribPointerWithOffset(loc, int32(a.Components), gl.FLOAT, false, int32(b.Stride), uintptr(a.Offset))
		gl.VertexAttribDivisor(loc, divisor)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return len(b.Attrs), checkError("bind " + b.Name)
}

// Release queues b's storage for deletion. Safe to call from any goroutine.
func (c *Context) Release(b *gpu.Buffer) {
	if b.Handle == 0 {
		return
	}
	c.mu.Lock()
	c.garbage = append(c.garbage, b.Handle)
	c.mu.Unlock()
}

// Collect deletes buffers queued by Release and returns how many were freed.
func (c *Context) Collect() int {
	c.mu.Lock()
	garbage := c.garbage
	c.garbage = nil
	c.mu.Unlock()
	if len(garbage) == 0 {
		return 0
	}
	gl.DeleteBuffers(int32(len(garbage)), &garbage[0])
	return len(garbage)
}

// Pending returns how many buffers await Collect.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.garbage)
}

// Reset disables every attribute array enabled since the last Reset, so one
// draw's bindings do not leak into the next.
func (c *Context) Reset() {
	for loc := range c.enabled {
		gl.DisableVertexAttribArray(loc)
		gl.VertexAttribDivisor(loc, 0)
	}
	clear(c.enabled)
}

// Draw issues an instanced draw with the current bindings.
func (c *Context) Draw(call gpu.DrawCall) error {
	if c.isLost() {
		return gpu.ErrContextLost
	}
	if call.Count == 0 {
		return nil
	}
	instances := int32(max(call.Instances, 1))
	mode := primitive(call.Primitive)
	if call.Indexed {
		gl.DrawElementsInstanced(mode, int32(call.Count), gl.UNSIGNED_INT, nil, instances)
	} else {
		gl.DrawArraysInstanced(mode, 0, int32(call.Count), instances)
	}
	return checkError("draw")
}

// MarkLost makes every later call fail with gpu.ErrContextLost.
func (c *Context) MarkLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lost = true
}

func (c *Context) isLost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// Destroy deletes pending buffers and the vertex array.
func (c *Context) Destroy() {
	c.Collect()
	gl.BindVertexArray(0)
	gl.DeleteVertexArrays(1, &c.vao)
}

func primitive(p gpu.Primitive) uint32 {
	switch p {
	case gpu.Lines:
		return gl.LINES
	case gpu.Points:
		return gl.POINTS
	default:
		return gl.TRIANGLES
	}
}

func checkError(op string) error {
	code := gl.GetError()
	if code == gl.NO_ERROR {
		return nil
	}
	if code == gl.OUT_OF_MEMORY {
		return fmt.Errorf("%s: GL out of memory (0x%x)", op, code)
	}
	return fmt.Errorf("%s: GL error 0x%x", op, code)
}
