package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/docker/go-units"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/tessera/internal/app"
	"github.com/irfansharif/tessera/internal/buffers"
	"github.com/irfansharif/tessera/internal/config"
	"github.com/irfansharif/tessera/internal/memory"
	"github.com/irfansharif/tessera/internal/render"
)

const logFlags = log.Ltime | log.Lshortfile

var runtimeLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
	log.SetFlags(logFlags)

	if os.Getenv("TESSERA_DEBUG_RUNTIME") == "1" {
		runtimeLogger = log.New(os.Stdout, "[runtime] ", log.Ltime|log.Lmsgprefix)
	}
}

func makeTitle(title string, fps, avgFrameTime float64, renderStats render.Stats, regStats buffers.Stats, instances int) string {
	return fmt.Sprintf("%s (%.1f FPS, %.2fms/frame, %d instances, %d models, %d draw calls/frame, %.2fµs/draw, %.2fms/prepare, %s GPU)",
		title,
		fps,
		avgFrameTime,
		instances,
		regStats.Models,
		renderStats.DrawCalls,
		renderStats.LastDrawTimeUs,
		renderStats.LastPrepareTimeMs,
		units.BytesSize(float64(regStats.GPUBytes)),
	)
}

func main() {
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := memory.SetDefaultConfig(cfg.Staging.Memory()); err != nil {
		log.Fatalf("Invalid staging config: %v", err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	window.MakeContextCurrent()
	if cfg.Window.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	if err := gl.Init(); err != nil {
		log.Fatalf("Failed to initialize OpenGL: %v", err)
	}

	cw, ch := window.GetFramebufferSize()
	application := app.NewApp(window, app.NewView(cw, ch), cfg)
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if path := os.Getenv("TESSERA_CONFIG"); path != "" {
		err := config.Watch(ctx, path, func(c config.Config) {
			// Only the staging thresholds are applied live.
			if err := memory.SetDefaultConfig(c.Staging.Memory()); err != nil {
				log.Printf("WARNING: ignoring staging config: %v", err)
				return
			}
			runtimeLogger.Printf("staging config reloaded: %+v", c.Staging)
		}, func(err error) {
			log.Printf("WARNING: config reload failed: %v", err)
		})
		if err != nil {
			log.Printf("WARNING: not watching config: %v", err)
		}
	}

	// The render loop stages every upload, so it gets a staging arena for its
	// whole lifetime.
	memory.Bind(func() {
		application.Populate(float64(cw)/2.0, float64(ch)/2.0)
		run(application)
	})
}

func run(application *app.App) {
	eventHandlers := NewEventHandlers(application)
	eventHandlers.updateRendererView()

	frameCount, frameTimeSum := 0, 0.0
	lastFPSUpdate := time.Now()

	// Main loop.
	for !application.Window.ShouldClose() {
		frameStart := time.Now()

		eventHandlers.handleContinuousPanning()

		w, h := application.Window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(1, 1, 1, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		application.Frame()
		application.Window.SwapBuffers()
		glfw.PollEvents()

		frameTime := time.Since(frameStart).Seconds() * 1000.0 // ms
		frameTimeSum += frameTime

		frameCount++
		now := time.Now()
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			avgFrameTime := frameTimeSum / float64(frameCount)
			frameCount, frameTimeSum = 0, 0.0
			lastFPSUpdate = now

			regStats := application.Registry.Stats()
			renderStats := application.Renderer.Stats()
			instances := len(application.Scene.Instances())

			application.Window.SetTitle(
				makeTitle(application.Config.Window.Title, fps, avgFrameTime, renderStats, regStats, instances),
			)

			runtimeLogger.Println("=== Performance statistics ===")
			runtimeLogger.Printf("Frame rate:     %.1f FPS (%.2f ms/frame, %d draw calls/frame, %d skipped)", fps, avgFrameTime, renderStats.DrawCalls, renderStats.Skipped)
			runtimeLogger.Printf("Scene:          %d instances of %d shapes", instances, application.Scene.Shapes())
			runtimeLogger.Printf("Buffers:        %s", regStats)
			runtimeLogger.Printf("Render time:    %.2f µs (last draw), %.2f ms (last prepare, %d models updated)", renderStats.LastDrawTimeUs, renderStats.LastPrepareTimeMs, renderStats.ModelsUpdated)
			runtimeLogger.Println("==============================")
		}
	}
}
