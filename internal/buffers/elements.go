package buffers

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/irfansharif/tessera/internal/gpu"
)

// ElementsBuffer is a per-instance buffer owned by a single renderable. It
// holds a list of instance records and uploads the whole list when it has
// changed since the last upload.
type ElementsBuffer[T any] struct {
	buf      *gpu.Buffer
	elements atomic.Pointer[[]T]
	changed  atomic.Bool

	mu  sync.Mutex // upload critical section
	ctx gpu.Context
}

// NewElementsBuffer returns an empty instance buffer whose records are laid
// out as attrs.
func NewElementsBuffer[T any](name string, attrs ...gpu.Attribute) *ElementsBuffer[T] {
	b := &ElementsBuffer[T]{
		buf: gpu.NewBuffer(name, gpu.TargetInstance, gpu.SizeOf[T](), attrs...),
	}
	b.elements.Store(new([]T))
	b.changed.Store(true)
	return b
}

// Elements returns the bound records. The slice must not be modified.
func (b *ElementsBuffer[T]) Elements() []T { return *b.elements.Load() }

// SetElements replaces the bound records and marks the buffer changed. The
// buffer keeps elems; callers must not modify it afterwards.
func (b *ElementsBuffer[T]) SetElements(elems []T) {
	b.elements.Store(&elems)
	b.changed.Store(true)
}

// ElementCount returns the length of the bound list, uploaded or not.
func (b *ElementsBuffer[T]) ElementCount() int { return len(*b.elements.Load()) }

// Changed reports whether the bound list awaits upload.
func (b *ElementsBuffer[T]) Changed() bool { return b.changed.Load() }

// Buffer returns the device buffer.
func (b *ElementsBuffer[T]) Buffer() *gpu.Buffer { return b.buf }

// AttachBuffer uploads the list if it changed and binds the buffer at slot,
// returning the number of attribute locations consumed. Concurrent callers
// upload at most once per change.
func (b *ElementsBuffer[T]) AttachBuffer(ctx gpu.Context, slot int) (int, error) {
	if b.changed.Load() {
		b.mu.Lock()
		if b.changed.Swap(false) {
			b.ctx = ctx
			if err := gpu.Upload(ctx, b.buf, b.Elements()); err != nil {
				b.changed.Store(true)
				b.mu.Unlock()
				return 0, fmt.Errorf("attaching %s: %w", b.buf.Name, err)
			}
			uploadLogger.Printf("%s: %d instances (%d bytes)", b.buf.Name, b.buf.Count(), b.buf.SizeBytes())
		}
		b.mu.Unlock()
	}
	return ctx.Bind(b.buf, slot)
}

// Release frees the device buffer. The list is kept and re-uploaded by the
// next AttachBuffer.
func (b *ElementsBuffer[T]) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil && b.buf.Handle != 0 {
		b.ctx.Release(b.buf)
		b.buf.Handle = 0
	}
	b.ctx = nil
	b.changed.Store(true)
}
