// Package analyzer finds where the content of an image is, so textures
// made from PDF pages and screenshots can drop their empty margins.
package analyzer

import (
	"fmt"
	"image"
)

// Region is a connected area of detected content
type Region struct {
	Rect   image.Rectangle
	Pixels int // Content pixels inside Rect
}

type Detector interface {
	Detect(img image.Image) ([]Region, error)
}

// NewDetector returns the detector called variant
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "background":
		return NewBackgroundDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// ContentBounds returns the union of the regions found in img grown by
// margin pixels, clipped to the image. ok is false when nothing was found.
func ContentBounds(d Detector, img image.Image, margin int) (r image.Rectangle, ok bool, err error) {
	regions, err := d.Detect(img)
	if err != nil {
		return image.Rectangle{}, false, err
	}
	for _, reg := range regions {
		r = r.Union(reg.Rect)
	}
	if r.Empty() {
		return img.Bounds(), false, nil
	}
	return r.Inset(-margin).Intersect(img.Bounds()), true, nil
}

// mask is a binary image over bounds, row major
type mask struct {
	bounds image.Rectangle
	bits   []bool
}

func newMask(b image.Rectangle) *mask {
	return &mask{bounds: b, bits: make([]bool, b.Dx()*b.Dy())}
}

func (m *mask) at(x, y int) bool {
	return m.bits[(y-m.bounds.Min.Y)*m.bounds.Dx()+x-m.bounds.Min.X]
}

func (m *mask) set(x, y int) {
	m.bits[(y-m.bounds.Min.Y)*m.bounds.Dx()+x-m.bounds.Min.X] = true
}

// regions labels the 4-connected components of m and keeps those with at
// least minPixels pixels
func (m *mask) regions(minPixels int) []Region {
	b := m.bounds
	seen := make([]bool, len(m.bits))
	var out []Region
	var stack []image.Point

	for i, on := range m.bits {
		if !on || seen[i] {
			continue
		}
		start := image.Pt(b.Min.X+i%b.Dx(), b.Min.Y+i/b.Dx())
		reg := Region{Rect: image.Rectangle{Min: start, Max: start.Add(image.Pt(1, 1))}}
		seen[i] = true
		stack = append(stack[:0], start)

		// Заливка в глубину без рекурсии
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			reg.Pixels++
			reg.Rect = reg.Rect.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})

			for _, q := range [4]image.Point{p.Add(image.Pt(1, 0)), p.Sub(image.Pt(1, 0)), p.Add(image.Pt(0, 1)), p.Sub(image.Pt(0, 1))} {
				if !q.In(b) {
					continue
				}
				j := (q.Y-b.Min.Y)*b.Dx() + q.X - b.Min.X
				if m.bits[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, q)
				}
			}
		}
		if reg.Pixels >= minPixels {
			out = append(out, reg)
		}
	}
	return out
}

// dilate grows every set pixel to a (2*radius+1)² square
func (m *mask) dilate(radius int) *mask {
	b := m.bounds
	out := newMask(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !m.at(x, y) {
				continue
			}
			for yy := max(y-radius, b.Min.Y); yy < min(y+radius+1, b.Max.Y); yy++ {
				for xx := max(x-radius, b.Min.X); xx < min(x+radius+1, b.Max.X); xx++ {
					out.set(xx, yy)
				}
			}
		}
	}
	return out
}
