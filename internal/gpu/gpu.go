// Package gpu is the boundary between buffer management and the graphics
// device. It defines the Buffer handle that buffer models own, and the small
// Context interface (upload, bind, release, draw) a device implements.
package gpu

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrContextLost is returned by a Context whose device can no longer accept
// work.
var ErrContextLost = errors.New("gpu: context lost")

// Target is what a buffer is bound as.
type Target uint8

const (
	TargetVertex   Target = iota // per-vertex attribute stream
	TargetIndex                  // element indices (uint32)
	TargetInstance               // per-instance attribute stream
)

func (t Target) String() string {
	switch t {
	case TargetVertex:
		return "vertex"
	case TargetIndex:
		return "index"
	case TargetInstance:
		return "instance"
	default:
		return "unknown"
	}
}

// Attribute describes one float32 shader input within a buffer element.
type Attribute struct {
	Name       string
	Components int // 1..4 float32 components
	Offset     int // byte offset within the element
}

// Layout builds tightly packed float32 attributes with the given component
// counts, in order.
func Layout(names []string, components ...int) []Attribute {
	attrs := make([]Attribute, len(components))
	offset := 0
	for i, c := range components {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		attrs[i] = Attribute{Name: name, Components: c, Offset: offset}
		offset += c * 4
	}
	return attrs
}

// Buffer is a device buffer owned by exactly one buffer model. Its contents
// are only ever replaced as a whole by Upload.
type Buffer struct {
	Name   string
	Target Target
	Attrs  []Attribute
	Stride int // element size in bytes

	// Handle is the device-side name, assigned by the Context on first upload.
	Handle uint32

	count   int
	size    int
	uploads int
}

// NewBuffer returns a buffer description; nothing is allocated on the device
// until the first upload.
func NewBuffer(name string, target Target, stride int, attrs ...Attribute) *Buffer {
	return &Buffer{Name: name, Target: target, Stride: stride, Attrs: attrs}
}

// Count returns the number of elements in the last successful upload.
func (b *Buffer) Count() int { return b.count }

// SizeBytes returns the byte size of the last successful upload.
func (b *Buffer) SizeBytes() int { return b.size }

// Uploads returns how many uploads have succeeded.
func (b *Buffer) Uploads() int { return b.uploads }

// Slots returns how many attribute locations binding this buffer consumes.
func (b *Buffer) Slots() int {
	if b.Target == TargetIndex {
		return 0
	}
	return len(b.Attrs)
}

func (b *Buffer) String() string {
	return fmt.Sprintf("%s(%s, %d elems, %dB)", b.Name, b.Target, b.count, b.size)
}

// DrawCall describes a single draw submission.
type DrawCall struct {
	Primitive Primitive
	Indexed   bool
	Count     int // indices when Indexed, vertices otherwise
	Instances int // 0 or 1 for a non-instanced draw
}

// Primitive is the topology of a draw.
type Primitive uint8

const (
	Triangles Primitive = iota
	Lines
	Points
)

func (p Primitive) String() string {
	switch p {
	case Triangles:
		return "triangles"
	case Lines:
		return "lines"
	case Points:
		return "points"
	default:
		return "unknown"
	}
}

// Context is a graphics device context. Implementations are driven from the
// goroutine that owns the device, except Release, which may be called from
// any goroutine.
type Context interface {
	// Upload replaces the whole contents of b with data. A zero-length upload
	// is valid and leaves the buffer empty. On error the previous contents
	// remain bound.
	Upload(b *Buffer, data []byte) error

	// Bind binds b for drawing. Vertex and instance buffers occupy
	// consecutive attribute locations starting at slot; the number consumed
	// is returned. Index buffers ignore slot and consume none.
	Bind(b *Buffer, slot int) (int, error)

	// Release frees the device storage behind b.
	Release(b *Buffer)

	// Draw submits a draw call using the currently bound buffers.
	Draw(call DrawCall) error
}

// Upload copies data into b through ctx and records the element count and
// byte size on success.
func Upload[T any](ctx Context, b *Buffer, data []T) error {
	raw := Bytes(data)
	if err := ctx.Upload(b, raw); err != nil {
		return fmt.Errorf("uploading %s: %w", b.Name, err)
	}
	b.count = len(data)
	b.size = len(raw)
	b.uploads++
	return nil
}

// Bytes reinterprets a slice of plain-old-data values as bytes without
// copying. It returns nil for an empty slice.
func Bytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), len(data)*int(unsafe.Sizeof(zero)))
}

// SizeOf returns the byte size of one T.
func SizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
