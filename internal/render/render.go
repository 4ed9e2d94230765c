// Package render draws renderables through a gpu.Context.
//
// Each frame has two passes. Prepare brings every renderable's shared buffer
// model up to date, uploading only the streams whose source attributes
// changed. Draw then binds each renderable's model and instance transforms
// and submits one instanced draw per renderable.
package render

import (
	"errors"
	"time"

	"github.com/irfansharif/tessera/internal/geom"
	"github.com/irfansharif/tessera/internal/gpu"
)

// Pipeline selects the shader program for a primitive and loads the view
// transform into it. Nil pipelines are allowed (nothing is selected).
type Pipeline interface {
	Use(p gpu.Primitive, view geom.Mat4)
}

// resetter is implemented by contexts that need attribute state cleared
// between draws.
type resetter interface {
	Reset()
}

type Renderer struct {
	w, h             int
	zoom, panX, panY float64

	pipeline Pipeline
	stats    Stats
}

// Stats tracks rendering performance metrics.
type Stats struct {
	LastPrepareTimeMs float64 // time spent in last Prepare() call in milliseconds
	LastDrawTimeUs    float64 // time spent in last Draw() call in microseconds
	ModelsUpdated     int     // models that uploaded at least one stream in the last Prepare
	PrepareErrors     int     // models whose update failed in the last Prepare
	DrawCalls         int     // draws submitted in the last Draw
	Skipped           int     // renderables with nothing uploaded or no instances
}

func NewRenderer(p Pipeline) *Renderer {
	return &Renderer{zoom: 1.0, w: 1, h: 1, pipeline: p}
}

func (r *Renderer) SetView(w, h int, zoom, panX, panY float64) {
	r.w, r.h = max(w, 1), max(h, 1)
	r.zoom = zoom
	r.panX, r.panY = panX, panY
}

// Prepare uploads dirty streams for every renderable's model. Models shared
// by several renderables are updated once. Failures are collected and
// returned together; failed streams stay dirty and are retried by the next
// Prepare.
func (r *Renderer) Prepare(ctx gpu.Context, renderables []*Renderable) error {
	startTime := time.Now()
	r.stats.ModelsUpdated, r.stats.PrepareErrors = 0, 0

	var errs []error
	for _, rd := range renderables {
		changed, err := rd.Model().UpdateBuffers(ctx)
		if err != nil {
			r.stats.PrepareErrors++
			errs = append(errs, err)
		}
		if changed {
			r.stats.ModelsUpdated++
		}
	}

	r.stats.LastPrepareTimeMs = float64(time.Since(startTime).Microseconds()) / 1000.0
	return errors.Join(errs...)
}

// Draw binds and draws every renderable. Renderables whose model has not
// been uploaded yet, or that have no instances, are skipped.
func (r *Renderer) Draw(ctx gpu.Context, renderables []*Renderable) error {
	startTime := time.Now()
	r.stats.DrawCalls, r.stats.Skipped = 0, 0
	view := r.computeTransformMatrix()
	reset, _ := ctx.(resetter)

	for _, rd := range renderables {
		if rd.Instances() == 0 {
			r.stats.Skipped++
			continue
		}
		model := rd.Model()
		if r.pipeline != nil {
			r.pipeline.Use(model.Primitive(), view)
		}

		slot := 0
		ok, err := model.AttachBuffers(ctx, &slot)
		if err != nil {
			return err
		}
		if !ok {
			r.stats.Skipped++
			continue
		}
		if _, err := rd.instances.AttachBuffer(ctx, slot); err != nil {
			return err
		}
		if err := ctx.Draw(model.DrawCall(rd.Instances())); err != nil {
			return err
		}
		r.stats.DrawCalls++
		if reset != nil {
			reset.Reset()
		}
	}

	r.stats.LastDrawTimeUs = float64(time.Since(startTime).Microseconds())
	return nil
}

// Stats returns the current performance statistics
func (r *Renderer) Stats() Stats {
	return r.stats
}

// computeTransformMatrix computes the complete transformation matrix from world
// coordinates to OpenGL NDC.
func (r *Renderer) computeTransformMatrix() geom.Mat4 {
	transform := geom.Identity()
	transform = r.applyZoomTransform(transform)
	transform = r.applyPanTransform(transform)
	transform = r.applyScreenToNDCTransform(transform)
	return transform.Mat4()
}

// applyZoomTransform applies zoom scaling around the viewport center.
func (r *Renderer) applyZoomTransform(baseTransform geom.Affine) geom.Affine {
	viewportCenterX := float64(r.w) / 2.0
	viewportCenterY := float64(r.h) / 2.0

	translateToOrigin := geom.MakeAffine(1, 0, -viewportCenterX, 0, 1, -viewportCenterY)
	uniformScale := geom.MakeAffine(r.zoom, 0, 0, 0, r.zoom, 0)
	translateBack := geom.MakeAffine(1, 0, viewportCenterX, 0, 1, viewportCenterY)

	return translateBack.Mul(uniformScale.Mul(translateToOrigin.Mul(baseTransform)))
}

// applyPanTransform applies pan translation in screen space.
func (r *Renderer) applyPanTransform(baseTransform geom.Affine) geom.Affine {
	panTranslation := geom.MakeAffine(1, 0, r.panX, 0, 1, r.panY)
	return panTranslation.Mul(baseTransform)
}

// applyScreenToNDCTransform converts screen coordinates to OpenGL NDC.
func (r *Renderer) applyScreenToNDCTransform(baseTransform geom.Affine) geom.Affine {
	screenToNDC := geom.MakeAffine(
		2.0/float64(r.w), 0, -1,
		0, -2.0/float64(r.h), 1,
	)
	return screenToNDC.Mul(baseTransform)
}
