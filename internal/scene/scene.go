// Package scene draws the producer's animated test pattern.
package scene

import (
	"image"
	"math"
	"time"

	"github.com/1broseidon/interop/internal/gpu"
)

// Object names, indexed by the shared object selector modulo 3.
var Objects = [3]string{"sphere", "cube", "diamond"}

type rgb struct{ r, g, b float64 }

var (
	background = rgb{0.5, 0.5, 1}
	foreground = rgb{1, 1, 1}
	progress   = rgb{1, 0, 0}
)

// Scene renders one rotating outline per frame. It is not safe for
// concurrent use; the producer loop owns it.
type Scene struct {
	object   func() uint32
	start    time.Time
	now      func() time.Time
	rotation int
}

// New returns a scene that reads the object selector through object.
func New(object func() uint32) *Scene {
	return &Scene{object: object, start: time.Now(), now: time.Now}
}

// Render matches pipeline.RenderFunc.
func (s *Scene) Render(view *gpu.View, width, height int) {
	s.Draw(view.Image(), view.Format() == gpu.RGBA8SRGB)
}

// Rotation is the angle in degrees the next frame will use.
func (s *Scene) Rotation() int { return s.rotation }

// Draw paints the next frame into img. Colors are blended in linear light
// when srgb is set.
func (s *Scene) Draw(img *image.RGBA, srgb bool) {
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	angle := float64(s.rotation) * math.Pi / 180
	s.rotation = (s.rotation + 1) % 360
	obj := s.object() % uint32(len(Objects))

	sin, cos := math.Sincos(angle)
	cx, cy := float64(w)/2, float64(h)/2
	r := 0.25 * float64(min(w, h))

	barRows := max(1, h/25)
	elapsed := s.now().Sub(s.start).Seconds()
	barWidth := int(float64(w) * math.Mod(elapsed, 10) / 10)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			var c rgb
			if y >= h-barRows && x < barWidth {
				c = progress
			} else {
				px, py := float64(x)+0.5-cx, float64(y)+0.5-cy
				ux := px*cos + py*sin
				uy := -px*sin + py*cos
				c = blend(background, foreground, coverage(obj, ux, uy, r, cos), srgb)
			}
			o := x * 4
			row[o+0] = toByte(c.r)
			row[o+1] = toByte(c.g)
			row[o+2] = toByte(c.b)
			row[o+3] = 255
		}
	}
}

// coverage returns how much of the pixel at (ux, uy) in object space the
// shape covers.
func coverage(obj uint32, ux, uy, r, tilt float64) float64 {
	const halfLine = 1.5
	switch obj {
	case 0:
		outline := math.Abs(math.Hypot(ux, uy) - r)
		// An equator that flattens as the sphere turns.
		squash := math.Max(math.Abs(tilt), 0.05)
		equator := math.Abs(math.Hypot(ux, uy/squash)-r) * squash
		return clamp01(halfLine - math.Min(outline, equator))
	case 1:
		return clamp01(halfLine - math.Abs(math.Max(math.Abs(ux), math.Abs(uy))-r))
	default:
		return clamp01(0.5 - (math.Abs(ux) + math.Abs(uy) - r))
	}
}

func blend(bg, fg rgb, a float64, srgb bool) rgb {
	if a <= 0 {
		return bg
	}
	if a >= 1 {
		return fg
	}
	if !srgb {
		return rgb{lerp(bg.r, fg.r, a), lerp(bg.g, fg.g, a), lerp(bg.b, fg.b, a)}
	}
	mix := func(p, q float64) float64 {
		return gpu.LinearToSRGB(lerp(gpu.SRGBToLinear(p), gpu.SRGBToLinear(q), a))
	}
	return rgb{mix(bg.r, fg.r), mix(bg.g, fg.g), mix(bg.b, fg.b)}
}

func lerp(p, q, a float64) float64 { return p + (q-p)*a }

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func toByte(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
