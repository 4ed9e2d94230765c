// Package gputest provides a recording gpu.Context for tests.
package gputest

import (
	"sync"

	"github.com/irfansharif/tessera/internal/gpu"
)

// Op is the kind of a recorded call.
type Op string

const (
	OpUpload  Op = "upload"
	OpBind    Op = "bind"
	OpRelease Op = "release"
	OpDraw    Op = "draw"
)

// Call is one recorded Context call.
type Call struct {
	Op     Op
	Buffer string
	Bytes  int
	Slot   int
	Draw   gpu.DrawCall
}

// Recorder implements gpu.Context by recording calls. It is safe for
// concurrent use.
type Recorder struct {
	mu         sync.Mutex
	calls      []Call
	nextHandle uint32
	contents   map[uint32][]byte

	// FailUploads, when non-nil, is returned from every Upload whose buffer
	// name it matches (or every Upload when FailBuffer is empty).
	FailUploads error
	FailBuffer  string
}

var _ gpu.Context = (*Recorder)(nil)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{contents: make(map[uint32][]byte)}
}

func (r *Recorder) Upload(b *gpu.Buffer, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUploads != nil && (r.FailBuffer == "" || r.FailBuffer == b.Name) {
		return r.FailUploads
	}
	if b.Handle == 0 {
		r.nextHandle++
		b.Handle = r.nextHandle
	}
	r.contents[b.Handle] = append([]byte(nil), data...)
	r.calls = append(r.calls, Call{Op: OpUpload, Buffer: b.Name, Bytes: len(data)})
	return nil
}

func (r *Recorder) Bind(b *gpu.Buffer, slot int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: OpBind, Buffer: b.Name, Slot: slot})
	return b.Slots(), nil
}

func (r *Recorder) Release(b *gpu.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contents, b.Handle)
	r.calls = append(r.calls, Call{Op: OpRelease, Buffer: b.Name})
}

func (r *Recorder) Draw(call gpu.DrawCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: OpDraw, Draw: call})
	return nil
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls of op were made for the named buffer. An
// empty name matches every buffer.
func (r *Recorder) Count(op Op, buffer string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Op == op && (buffer == "" || c.Buffer == buffer) {
			n++
		}
	}
	return n
}

// Uploads returns the byte sizes of each upload to the named buffer, in order.
func (r *Recorder) Uploads(buffer string) []int {
	var sizes []int
	for _, c := range r.Calls() {
		if c.Op == OpUpload && c.Buffer == buffer {
			sizes = append(sizes, c.Bytes)
		}
	}
	return sizes
}

// Contents returns the bytes last uploaded to b.
func (r *Recorder) Contents(b *gpu.Buffer) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contents[b.Handle]
}

// Forget drops recorded calls (buffer contents are kept).
func (r *Recorder) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
