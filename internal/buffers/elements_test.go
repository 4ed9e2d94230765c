package buffers

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/gpu"
	"github.com/irfansharif/tessera/internal/gpu/gputest"
)

func newTransforms() *ElementsBuffer[geom.Mat4] {
	return NewElementsBuffer[geom.Mat4]("instances", gpu.Layout(nil, 4, 4, 4, 4)...)
}

func TestElementsBufferCountTracksBoundList(t *testing.T) {
	b := newTransforms()
	assert.Equal(t, 0, b.ElementCount())
	assert.True(t, b.Changed())

	b.SetElements([]geom.Mat4{geom.IdentityMat4(), geom.IdentityMat4()})
	assert.Equal(t, 2, b.ElementCount())
	assert.Equal(t, 0, b.Buffer().Count(), "not uploaded yet")
}

func TestElementsBufferUploadsOncePerChange(t *testing.T) {
	rec := gputest.NewRecorder()
	b := newTransforms()
	b.SetElements([]geom.Mat4{geom.IdentityMat4()})

	n, err := b.AttachBuffer(rec, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, b.Changed())

	_, err = b.AttachBuffer(rec, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{64}, rec.Uploads("instances"))
	assert.Equal(t, 2, rec.Count(gputest.OpBind, "instances"))

	b.SetElements(nil)
	_, err = b.AttachBuffer(rec, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{64, 0}, rec.Uploads("instances"))
}

func TestElementsBufferConcurrentAttach(t *testing.T) {
	rec := gputest.NewRecorder()
	b := newTransforms()
	b.SetElements(make([]geom.Mat4, 5))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.AttachBuffer(rec, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, rec.Count(gputest.OpUpload, "instances"))
	assert.Equal(t, 16, rec.Count(gputest.OpBind, "instances"))
}

func TestElementsBufferFailureStaysChanged(t *testing.T) {
	rec := gputest.NewRecorder()
	rec.FailUploads = gpu.ErrContextLost
	b := newTransforms()
	b.SetElements(make([]geom.Mat4, 1))

	_, err := b.AttachBuffer(rec, 0)
	assert.True(t, errors.Is(err, gpu.ErrContextLost))
	assert.True(t, b.Changed())
	assert.Equal(t, 0, rec.Count(gputest.OpBind, ""))

	rec.FailUploads = nil
	_, err = b.AttachBuffer(rec, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Buffer().Count())
}

func TestElementsBufferRelease(t *testing.T) {
	rec := gputest.NewRecorder()
	b := newTransforms()
	b.SetElements(make([]geom.Mat4, 2))
	_, err := b.AttachBuffer(rec, 0)
	require.NoError(t, err)

	b.Release()
	b.Release()
	assert.Equal(t, 1, rec.Count(gputest.OpRelease, "instances"))
	assert.True(t, b.Changed())
	assert.Equal(t, 2, b.ElementCount())
}
