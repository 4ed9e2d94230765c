package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/irfansharif/tessera/internal/geom"
)

func TestViewResetToCentersPoint(t *testing.T) {
	v := NewView(800, 600)
	v.SetZoom(3)
	v.ResetTo(geom.MakePoint(50, -20))

	p := v.ScreenToWorld(400, 300)
	assert.InDelta(t, 50, p.X, 1e-9)
	assert.InDelta(t, -20, p.Y, 1e-9)
	assert.Equal(t, 1.0, v.Zoom)
}

func TestViewZoomAtKeepsCursorFixed(t *testing.T) {
	v := NewView(800, 600)
	v.SetPan(30, -10)
	before := v.ScreenToWorld(120, 450)

	v.ZoomAt(1.5, 120, 450)
	assert.Equal(t, 1.5, v.Zoom)
	after := v.ScreenToWorld(120, 450)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	v.ZoomAt(100, 0, 0)
	assert.Equal(t, maxZoom, v.Zoom)
	v.ZoomAt(1e-6, 0, 0)
	assert.Equal(t, minZoom, v.Zoom)
}
