package app

import (
	"github.com/irfansharif/tessera/internal/geom"
)

const (
	minZoom = 0.1
	maxZoom = 8.0
)

// View manages the current view state including zoom, pan, and viewport.
type View struct {
	Zoom          float64
	PanX, PanY    float64
	Width, Height int
}

// NewView creates a new view state with default values.
func NewView(width, height int) *View {
	return &View{
		Zoom:   1.0,
		Width:  width,
		Height: height,
	}
}

// SetZoom sets the zoom level, clamping to valid range.
func (vs *View) SetZoom(zoom float64) {
	if zoom < minZoom {
		vs.Zoom = minZoom
	} else if zoom > maxZoom {
		vs.Zoom = maxZoom
	} else {
		vs.Zoom = zoom
	}
}

// SetPan sets the pan position to the given coordinates.
func (vs *View) SetPan(x, y float64) {
	vs.PanX = x
	vs.PanY = y
}

// SetViewport updates the viewport dimensions.
func (vs *View) SetViewport(width, height int) {
	vs.Width = width
	vs.Height = height
}

// ZoomAt multiplies the zoom by factor, keeping the world point under the
// framebuffer position (fx, fy) fixed on screen.
func (vs *View) ZoomAt(factor, fx, fy float64) {
	centerX, centerY := float64(vs.Width)/2, float64(vs.Height)/2
	offsetX, offsetY := fx-centerX, fy-centerY

	// World point (relative to center) under the cursor before zooming.
	worldX, worldY := (offsetX-vs.PanX)/vs.Zoom, (offsetY-vs.PanY)/vs.Zoom

	vs.SetZoom(vs.Zoom * factor)
	vs.SetPan(offsetX-worldX*vs.Zoom, offsetY-worldY*vs.Zoom)
}

// ScreenToWorld maps a framebuffer position to world coordinates.
func (vs *View) ScreenToWorld(fx, fy float64) geom.Point {
	centerX, centerY := float64(vs.Width)/2, float64(vs.Height)/2
	return geom.MakePoint(
		(fx-centerX*(1-vs.Zoom)-vs.PanX)/vs.Zoom,
		(fy-centerY*(1-vs.Zoom)-vs.PanY)/vs.Zoom,
	)
}

// ResetTo resets zoom to 1.0 and pans to center the given point in the
// viewport.
func (vs *View) ResetTo(pos geom.Point) {
	vs.Zoom = 1.0
	viewportCenterX := float64(vs.Width) / 2.0
	viewportCenterY := float64(vs.Height) / 2.0
	vs.PanX = viewportCenterX - pos.X
	vs.PanY = viewportCenterY - pos.Y
}
