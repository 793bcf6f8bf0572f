// Package renderer rasterizes evaluated scene frames on the CPU.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/system"
)

// Options configures the output frames
type Options struct {
	Width, Height int
	Debug         bool // Draw the frame index and time in the corner
}

// Renderer draws frames of one scene. It keeps no per-frame state, so one
// Renderer can serve several goroutines.
type Renderer struct {
	opts     Options
	name     string
	clear    color.Color
	proj     mgl32.Mat4
	viewport image.Rectangle
}

// New creates a renderer for s. The scene plane [-aspect,aspect]×[-1,1] is
// fitted into the frame keeping the scene aspect ratio.
func New(s *scene.Scene, opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	aspect := float32(s.Aspect())
	return &Renderer{
		opts:     opts,
		name:     s.Name,
		clear:    toColor(s.ClearColor),
		proj:     mgl32.Ortho2D(-aspect, aspect, -1, 1),
		viewport: fit(opts.Width, opts.Height, s.Aspect()),
	}, nil
}

// Bounds returns the frame rectangle
func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.opts.Width, r.opts.Height)
}

// Render draws frame into an image taken from the image pool. The caller
// owns the image and should hand it back with system.PutImage.
func (r *Renderer) Render(frame *scene.Frame, index int) (*image.RGBA, error) {
	dst := system.GetImage(r.Bounds())
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.clear), image.Point{}, draw.Src)

	z := vector.NewRasterizer(r.opts.Width, r.opts.Height)
	for i := range frame.Calls {
		call := &frame.Calls[i]
		var err error
		if call.Program.Textured {
			err = r.drawTextured(dst, call)
		} else {
			err = r.drawFilled(dst, z, call)
		}
		if err != nil {
			system.PutImage(dst)
			return nil, fmt.Errorf("draw %s: %w", call.Path, err)
		}
	}

	if r.opts.Debug {
		r.hud(dst, frame.Time, index)
	}
	return dst, nil
}

func (r *Renderer) drawFilled(dst *image.RGBA, z *vector.Rasterizer, call *scene.DrawCall) error {
	sh, err := newShader(call)
	if err != nil {
		return err
	}
	if sh.fill.A == 0 {
		return nil
	}

	mvp := r.proj.Mul4(call.Model)
	z.Reset(r.opts.Width, r.opts.Height)
	frame := [4]float32{0, 0, float32(r.opts.Width), float32(r.opts.Height)}
	drawn := false
	bufA, bufB := make([][2]float32, 0, 8), make([][2]float32, 0, 8)
	for i := 0; i+2 < len(call.Triangles); i += 3 {
		a := r.project(mvp, sh.vertex(call.Triangles[i]))
		b := r.project(mvp, sh.vertex(call.Triangles[i+1]))
		c := r.project(mvp, sh.vertex(call.Triangles[i+2]))
		if !finite(a) || !finite(b) || !finite(c) {
			continue
		}
		// Все треугольники в одном направлении обхода, иначе перекрытия
		// взаимно гасятся в буфере покрытия
		if cross(a, b, c) < 0 {
			b, c = c, b
		}
		bufA = append(bufA[:0], a, b, c)
		poly := clip(bufA, bufB, frame) // отсекаем по границам кадра
		if len(poly) < 3 {
			continue
		}
		z.MoveTo(poly[0][0], poly[0][1])
		for _, p := range poly[1:] {
			z.LineTo(p[0], p[1])
		}
		z.ClosePath()
		drawn = true
	}
	if drawn {
		z.Draw(dst, dst.Bounds(), image.NewUniform(sh.fill), image.Point{})
	}
	return nil
}

// drawTextured maps the texture onto a quad whose triangles are laid out
// as (c, c+w, c+w+h) and (c, c+w+h, c+h).
func (r *Renderer) drawTextured(dst *image.RGBA, call *scene.DrawCall) error {
	if call.Texture == nil {
		return fmt.Errorf("program %s without texture", call.Program.Name)
	}
	if len(call.Triangles) != 6 {
		return fmt.Errorf("textured draw needs a quad, got %d vertices", len(call.Triangles))
	}
	opacity := clamp01(call.Uniforms["opacity"].Float())
	if opacity == 0 {
		return nil
	}

	mvp := r.proj.Mul4(call.Model)
	topLeft := r.project(mvp, call.Triangles[5])
	topRight := r.project(mvp, call.Triangles[2])
	bottomLeft := r.project(mvp, call.Triangles[0])
	if !finite(topLeft) || !finite(topRight) || !finite(bottomLeft) {
		return nil
	}

	src := call.Texture
	sb := src.Bounds()
	if sb.Empty() {
		return nil
	}
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	a := float64(topRight[0]-topLeft[0]) / sw
	b := float64(bottomLeft[0]-topLeft[0]) / sh
	d := float64(topRight[1]-topLeft[1]) / sw
	e := float64(bottomLeft[1]-topLeft[1]) / sh
	s2d := f64.Aff3{
		a, b, float64(topLeft[0]) - a*float64(sb.Min.X) - b*float64(sb.Min.Y),
		d, e, float64(topLeft[1]) - d*float64(sb.Min.X) - e*float64(sb.Min.Y),
	}
	if a*e-b*d == 0 {
		return nil
	}

	if opacity >= 1 {
		xdraw.BiLinear.Transform(dst, s2d, src, sb, xdraw.Over, nil)
		return nil
	}

	layer := system.GetImage(dst.Bounds())
	defer system.PutImage(layer)
	draw.Draw(layer, layer.Bounds(), image.Transparent, image.Point{}, draw.Src)
	xdraw.BiLinear.Transform(layer, s2d, src, sb, xdraw.Over, nil)
	mask := image.NewUniform(color.Alpha16{A: uint16(opacity * 0xffff)})
	draw.DrawMask(dst, dst.Bounds(), layer, image.Point{}, mask, image.Point{}, draw.Over)
	return nil
}

func (r *Renderer) hud(dst *image.RGBA, t float64, index int) {
	label := fmt.Sprintf("%s #%d t=%.3fs", r.name, index, t)
	face := basicfont.Face7x13

	box := image.Rect(4, 4, 12+font.MeasureString(face, label).Ceil(), 8+face.Height)
	draw.Draw(dst, box, image.NewUniform(color.NRGBA{0, 0, 0, 128}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{255, 255, 0, 255}),
		Face: face,
		Dot:  fixed.P(8, 4+face.Ascent),
	}
	d.DrawString(label)
}

// project maps a model space vertex to frame pixels
func (r *Renderer) project(mvp mgl32.Mat4, v mgl32.Vec3) [2]float32 {
	clip := mvp.Mul4x1(v.Vec4(1))
	if clip[3] != 0 && clip[3] != 1 {
		clip = clip.Mul(1 / clip[3])
	}
	vp := r.viewport
	return [2]float32{
		float32(vp.Min.X) + (clip[0]+1)/2*float32(vp.Dx()),
		float32(vp.Min.Y) + (1-clip[1])/2*float32(vp.Dy()),
	}
}

// clip cuts the convex polygon in against the rectangle
// {minX, minY, maxX, maxY}, one edge at a time. The result shares storage
// with in or out.
func clip(in, out [][2]float32, rect [4]float32) [][2]float32 {
	for edge := 0; edge < 4 && len(in) > 0; edge++ {
		axis, bound, keepBelow := edge%2, rect[edge], edge >= 2
		inside := func(p [2]float32) bool {
			if keepBelow {
				return p[axis] <= bound
			}
			return p[axis] >= bound
		}
		out = out[:0]
		prev := in[len(in)-1]
		for _, cur := range in {
			if inside(cur) {
				if !inside(prev) {
					out = append(out, intersect(prev, cur, axis, bound))
				}
				out = append(out, cur)
			} else if inside(prev) {
				out = append(out, intersect(prev, cur, axis, bound))
			}
			prev = cur
		}
		in, out = out, in
	}
	return in
}

func intersect(a, b [2]float32, axis int, bound float32) [2]float32 {
	t := (bound - a[axis]) / (b[axis] - a[axis])
	p := [2]float32{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
	p[axis] = bound
	return p
}

// fit returns the largest rectangle of the given aspect centered in w×h
func fit(w, h int, aspect float64) image.Rectangle {
	vw, vh := float64(w), float64(w)/aspect
	if vh > float64(h) {
		vw, vh = float64(h)*aspect, float64(h)
	}
	x0 := int(math.Round((float64(w) - vw) / 2))
	y0 := int(math.Round((float64(h) - vh) / 2))
	return image.Rect(x0, y0, x0+int(math.Round(vw)), y0+int(math.Round(vh)))
}

func cross(a, b, c [2]float32) float32 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func finite(p [2]float32) bool {
	for _, f := range p {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
