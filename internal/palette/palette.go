// Package palette generates per-vertex color streams. Palettes are built in
// HSV and blended in CIE L*a*b* so gradients stay perceptually even.
package palette

import (
	"image/color"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/irfansharif/tessera/internal/geom"
)

// Palette holds five colors: a dark base, a light background and three
// accents.
type Palette [5]color.RGBA

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hsb(h, s, b float64) color.RGBA {
	// Convert from 0-100 range to 0-360 for hue, 0-1 for saturation and brightness.
	c := colorful.Hsv(h*3.6, clamp(s/100.0, 0, 1), clamp(b/100.0, 0, 1))
	red, green, blue := c.RGB255()
	return color.RGBA{R: red, G: green, B: blue, A: 255}
}

// RandomPalette returns a palette using HSV generation.
func RandomPalette(r *rand.Rand) Palette {
	p := Palette{}
	p[0] = hsb(r.Float64()*100, r.Float64()*100, r.Float64()*30)
	p[1] = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for i := 2; i < 5; i++ {
		p[i] = hsb(r.Float64()*100, r.Float64()*50+25, r.Float64()*50+25)
	}
	return p
}

// Shimmered applies a brightness jitter to the accent colors.
func Shimmered(p Palette, r *rand.Rand) Palette {
	out := p
	for i := 2; i < 5; i++ {
		h, s, v := toColorful(out[i]).Hsv()
		v = clamp(v+(r.Float64()-0.5)*0.2, 0, 1)
		red, green, blue := colorful.Hsv(h, s, v).RGB255()
		out[i] = color.RGBA{R: red, G: green, B: blue, A: 255}
	}
	return out
}

func toColorful(c color.RGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Vec4 converts c to a normalized RGBA vector.
func Vec4(c color.RGBA) geom.Vec4 {
	return geom.V4(float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, float32(c.A)/255)
}

// Gradient returns n colors sweeping through the palette's accents in Lab
// space and wrapping back to the first, so a closed outline has no seam.
func (p Palette) Gradient(n int) []geom.Vec4 {
	if n <= 0 {
		return nil
	}
	accents := []colorful.Color{toColorful(p[2]), toColorful(p[3]), toColorful(p[4])}
	out := make([]geom.Vec4, n)
	for i := range out {
		t := float64(i) / float64(n) * float64(len(accents))
		j := int(t)
		from, to := accents[j%len(accents)], accents[(j+1)%len(accents)]
		c := from.BlendLab(to, t-float64(j)).Clamped()
		out[i] = geom.V4(float32(c.R), float32(c.G), float32(c.B), 1)
	}
	return out
}

// Solid returns n copies of c.
func Solid(c color.RGBA, n int) []geom.Vec4 {
	if n <= 0 {
		return nil
	}
	v := Vec4(c)
	out := make([]geom.Vec4, n)
	for i := range out {
		out[i] = v
	}
	return out
}
