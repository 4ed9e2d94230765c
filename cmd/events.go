package main

import (
	"strconv"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/tessera/internal/app"
)

const repeatInterval = 125 * time.Millisecond // time between successive pans when pressed down
const basePanDistance = 100.0

// EventHandlers manages all event handling for the application.
type EventHandlers struct {
	application *app.App

	// J/K/H/L allow panning across through keypresses. They also do so
	// continuously if held.
	panKeyHeld                   bool
	panDirectionX, panDirectionY float64
	lastPanTime                  time.Time

	// Drag/pan state (per-gesture), captured on mouse press.
	isDragging                       bool
	dragStartMouseX, dragStartMouseY float64
	dragStartPanX, dragStartPanY     float64

	// Current mouse position in world coordinates.
	mouseWorldX, mouseWorldY float64

	// Digits typed before an action key: side count for N, instance count
	// for D.
	inputBuffer string
}

// NewEventHandlers creates a new event handlers manager.
func NewEventHandlers(application *app.App) *EventHandlers {
	eh := &EventHandlers{
		application: application,
		lastPanTime: time.Now(),
	}
	eh.SetupCallbacks(application.Window)
	return eh
}

// SetupCallbacks configures all GLFW event callbacks.
func (eh *EventHandlers) SetupCallbacks(window *glfw.Window) {
	window.SetKeyCallback(func(wnd *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleKey(key, action, mods)
	})
	window.SetMouseButtonCallback(func(wnd *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleMouseButton(button, action) // for panning
	})
	window.SetCursorPosCallback(func(wnd *glfw.Window, xpos, ypos float64) {
		eh.handleCursorPos(xpos, ypos)
	})
	window.SetScrollCallback(func(wnd *glfw.Window, _, zoomDelta float64) {
		eh.performZoom(zoomDelta)
	})
	window.SetFramebufferSizeCallback(func(wnd *glfw.Window, newW, newH int) {
		eh.handleFramebufferSize(newW, newH)
	})
}

// updateRendererView updates the renderer with the current view state and
// framebuffer size.
func (eh *EventHandlers) updateRendererView() {
	view := eh.application.View
	cw, ch := eh.application.Window.GetFramebufferSize()
	eh.application.Renderer.SetView(cw, ch, view.Zoom, view.PanX, view.PanY)
}

// handleFramebufferSize handles window resize events.
func (eh *EventHandlers) handleFramebufferSize(newW, newH int) {
	eh.application.View.SetViewport(newW, newH)
	eh.updateRendererView()
}

// handleKey handles keyboard input events.
func (eh *EventHandlers) handleKey(key glfw.Key, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Press {
		if key >= glfw.Key0 && key <= glfw.Key9 {
			eh.inputBuffer += string(rune('0' + int(key-glfw.Key0)))
			return
		}
		if key == glfw.KeyEscape {
			eh.inputBuffer = ""
			return
		}
	}

	x, y := eh.mouseWorldX, eh.mouseWorldY
	switch key {
	case glfw.KeyN:
		if action == glfw.Press {
			eh.application.CreateShape(x, y, eh.parseInput(0))
		}
	case glfw.KeyC:
		if action == glfw.Press {
			eh.application.DuplicateClosest(x, y)
		}
	case glfw.KeyD:
		if action == glfw.Press {
			eh.application.DeleteClosest(x, y, eh.parseInput(1))
		}
	case glfw.KeyS:
		if action == glfw.Press {
			eh.application.RecolorClosest(x, y)
		}
	case glfw.KeyG:
		if action == glfw.Press {
			eh.application.ReshapeClosest(x, y)
		}
	case glfw.KeyP:
		if action == glfw.Press {
			eh.application.Registry.PrintStats()
		}
	case glfw.KeyR:
		if action == glfw.Press {
			eh.handleResetKey()
		}
	case glfw.KeyTab:
		if action == glfw.Press {
			eh.handleInstanceNavigation((mods & glfw.ModShift) == 0)
		}
	case glfw.KeyJ:
		eh.handlePanKeys(action, 0 /*dx*/, -1 /*dy*/) // pan down
	case glfw.KeyK:
		eh.handlePanKeys(action, 0 /*dx*/, 1 /*dy*/) // pan up
	case glfw.KeyH:
		eh.handlePanKeys(action, 1 /*dx*/, 0 /*dy*/) // pan right
	case glfw.KeyL:
		eh.handlePanKeys(action, -1 /*dx*/, 0 /*dy*/) // pan left
	case glfw.KeyEqual:
		if action == glfw.Press && (mods&glfw.ModSuper) != 0 {
			eh.performZoom(1) // zoom in
		}
	case glfw.KeyMinus:
		if action == glfw.Press && (mods&glfw.ModSuper) != 0 {
			eh.performZoom(-1) // zoom out
		}
	}
}

// parseInput consumes the typed digits, returning def when there are none.
func (eh *EventHandlers) parseInput(def int) int {
	input := eh.inputBuffer
	eh.inputBuffer = ""
	if input == "" {
		return def
	}
	val, err := strconv.Atoi(input)
	if err != nil {
		return def
	}
	return val
}

// handlePanKeys handles j/k/h/l key presses, and also releases for
// continuous panning.
func (eh *EventHandlers) handlePanKeys(action glfw.Action, dx, dy float64) {
	switch action {
	case glfw.Press:
		eh.panKeyHeld = true
		eh.panDirectionX = dx
		eh.panDirectionY = dy
		eh.performPan(dx, dy)
		eh.lastPanTime = time.Now()

	case glfw.Release:
		eh.panKeyHeld = false
	}
}

// performPan executes a single pan operation.
func (eh *EventHandlers) performPan(dx, dy float64) {
	// Scale by inverse of zoom: when zoomed out (zoom < 1), we move further in
	// world space and vice-versa.
	view := eh.application.View
	scaledDistance := basePanDistance / view.Zoom

	view.SetPan(view.PanX+dx*scaledDistance, view.PanY+dy*scaledDistance)
	eh.updateRendererView()

	mouseX, mouseY := eh.application.Window.GetCursorPos()
	eh.updateMouseWorldPos(mouseX, mouseY)
}

// handleContinuousPanning handles continuous panning while pan keys are held.
func (eh *EventHandlers) handleContinuousPanning() {
	if !eh.panKeyHeld {
		return
	}

	now := time.Now()
	if now.Sub(eh.lastPanTime) < repeatInterval {
		return
	}

	eh.performPan(eh.panDirectionX, eh.panDirectionY)
	eh.lastPanTime = now
}

// handleResetKey handles R key press (reset zoom and pan to the closest
// instance, and select it for subsequent tabs).
func (eh *EventHandlers) handleResetKey() {
	scene := eh.application.Scene
	if closest := scene.FindClosest(eh.mouseWorldX, eh.mouseWorldY); len(closest) > 0 {
		eh.application.View.ResetTo(closest[0].Pos)
		scene.SetCurrent(closest[0])
	}

	eh.updateRendererView()
	mouseX, mouseY := eh.application.Window.GetCursorPos()
	eh.updateMouseWorldPos(mouseX, mouseY)
}

// handleInstanceNavigation handles tab and shift+tab key presses.
func (eh *EventHandlers) handleInstanceNavigation(next bool) {
	in := eh.application.Scene.IterInstance(next)
	if in == nil {
		return
	}

	eh.application.View.ResetTo(in.Pos)
	eh.updateRendererView()

	// Point the cursor position at the selected instance so the next
	// C/D/S/G acts on it.
	eh.mouseWorldX, eh.mouseWorldY = in.Pos.X, in.Pos.Y
}

// handleMouseButton handles mouse button events for panning.
func (eh *EventHandlers) handleMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return
	}

	switch action {
	case glfw.Press:
		eh.isDragging = true
		eh.dragStartMouseX, eh.dragStartMouseY = eh.application.Window.GetCursorPos()
		view := eh.application.View
		eh.dragStartPanX, eh.dragStartPanY = view.PanX, view.PanY
	case glfw.Release:
		eh.isDragging = false
	}
}

// framebufferPos converts window coordinates to framebuffer pixels.
func (eh *EventHandlers) framebufferPos(mouseX, mouseY float64) (float64, float64) {
	scaleX, scaleY := eh.application.Window.GetContentScale()
	return mouseX * float64(scaleX), mouseY * float64(scaleY)
}

// updateMouseWorldPos recalculates the mouse position in world coordinates
// after view changes.
func (eh *EventHandlers) updateMouseWorldPos(mouseX, mouseY float64) {
	p := eh.application.View.ScreenToWorld(eh.framebufferPos(mouseX, mouseY))
	eh.mouseWorldX, eh.mouseWorldY = p.X, p.Y
}

// handleCursorPos tracks the mouse and drags the view while the button is
// held.
func (eh *EventHandlers) handleCursorPos(xpos, ypos float64) {
	eh.updateMouseWorldPos(xpos, ypos)
	if !eh.isDragging {
		return
	}

	scaleX, scaleY := eh.application.Window.GetContentScale()
	dx := (xpos - eh.dragStartMouseX) * float64(scaleX)
	dy := (ypos - eh.dragStartMouseY) * float64(scaleY)
	eh.application.View.SetPan(eh.dragStartPanX+dx, eh.dragStartPanY+dy)
	eh.updateRendererView()
}

// performZoom handles zoom operations with cursor-centered zooming.
func (eh *EventHandlers) performZoom(zoomDelta float64) {
	fx, fy := eh.framebufferPos(eh.application.Window.GetCursorPos())
	eh.application.View.ZoomAt(1.0+zoomDelta*0.15, fx, fy)
	eh.updateRendererView()
}
