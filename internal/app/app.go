package app

import (
	"log"
	"math"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/tessera/internal/buffers"
	"github.com/irfansharif/tessera/internal/config"
	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/gpu/gldevice"
	"github.com/irfansharif/tessera/internal/render"
)

// duplicateOffset is how far (in multiples of the shape radius) a duplicate
// is placed from its source.
const duplicateOffset = 2.5

// App encapsulates the main application state and logic.
type App struct {
	Window   *glfw.Window
	Config   config.Config
	Device   *gldevice.Context
	Shaders  *render.ShaderManager
	Registry *buffers.Registry
	Renderer *render.Renderer
	Scene    *Scene
	View     *View
}

// NewApp creates a new application instance. The window's GL context must be
// current and initialized.
func NewApp(window *glfw.Window, view *View, cfg config.Config) *App {
	shaders := render.NewShaderManager()
	registry := buffers.NewRegistry()
	return &App{
		Window:   window,
		Config:   cfg,
		Device:   gldevice.New(),
		Shaders:  shaders,
		Registry: registry,
		Renderer: render.NewRenderer(shaders),
		Scene:    NewScene(registry, cfg.Scene.Seed),
		View:     view,
	}
}

// Populate lays out the configured number of shapes in a grid centered on
// (cx, cy), each followed by its duplicates.
func (app *App) Populate(cx, cy float64) {
	n := app.Config.Scene.Shapes
	if n == 0 {
		return
	}
	scale := app.Config.Scene.Scale
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	spacing := scale * duplicateOffset * float64(app.Config.Scene.Duplicates+1)
	originX := cx - spacing*float64(cols-1)/2
	originY := cy - spacing*float64(rows-1)/2

	for i := range n {
		x := originX + spacing*float64(i%cols)
		y := originY + spacing*float64(i/cols)
		in := app.CreateShape(x, y, 0)
		if in == nil {
			continue
		}
		for range app.Config.Scene.Duplicates {
			app.DuplicateClosest(x, y)
		}
	}
}

// CreateShape places a new shape at (x, y). sides of 0 picks one at random.
func (app *App) CreateShape(x, y float64, sides int) *Instance {
	in, err := app.Scene.AddShape(sides, geom.MakePoint(x, y), app.Config.Scene.Scale)
	if err != nil {
		log.Printf("WARNING: failed to create shape: %v", err)
		return nil
	}
	return in
}

// DuplicateClosest places another instance of the shape closest to (x, y),
// to its right.
func (app *App) DuplicateClosest(x, y float64) *Instance {
	closest := app.Scene.FindClosest(x, y)
	if len(closest) == 0 {
		return nil
	}
	// Chain off the most recent instance of the same shape.
	src := closest[0]
	for _, in := range app.Scene.Instances() {
		if in.Shape == src.Shape && in.ID > src.ID {
			src = in
		}
	}
	in, _ := app.Scene.Duplicate(src.ID, src.Scale*duplicateOffset, 0)
	return in
}

// DeleteClosest removes up to count instances closest to (x, y).
func (app *App) DeleteClosest(x, y float64, count int) {
	closest := app.Scene.FindClosest(x, y)
	count = min(count, len(closest))
	for _, in := range closest[:count] {
		app.Scene.Remove(in.ID)
	}
}

// RecolorClosest recolors the shape of the instance closest to (x, y). Every
// instance of the shape changes color.
func (app *App) RecolorClosest(x, y float64) {
	if closest := app.Scene.FindClosest(x, y); len(closest) > 0 {
		app.Scene.Recolor(closest[0].Shape)
	}
}

// ReshapeClosest re-jitters the shape of the instance closest to (x, y).
func (app *App) ReshapeClosest(x, y float64) {
	if closest := app.Scene.FindClosest(x, y); len(closest) > 0 {
		if err := app.Scene.Reshape(closest[0].Shape); err != nil {
			log.Printf("WARNING: failed to reshape shape %d: %v", closest[0].Shape.ID, err)
		}
	}
}

// Frame prepares and draws the scene, then frees buffers released since the
// last frame. Failed uploads are logged and retried next frame.
func (app *App) Frame() {
	renderables := app.Scene.Renderables()
	if err := app.Renderer.Prepare(app.Device, renderables); err != nil {
		log.Printf("WARNING: prepare failed (will retry): %v", err)
	}
	if err := app.Renderer.Draw(app.Device, renderables); err != nil {
		log.Fatalf("Draw failed: %v", err)
	}
	app.Device.Collect()
}

// Close releases every GPU resource.
func (app *App) Close() {
	app.Scene.Clear()
	app.Registry.Close()
	app.Shaders.Destroy()
	app.Device.Destroy()
}
