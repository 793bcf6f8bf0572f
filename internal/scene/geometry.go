package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ivlev/scene2video/internal/anim"
)

// Geometry produces a triangle list in model space
type Geometry interface {
	check() error
	triangles(at float64) ([]mgl32.Vec3, error)
}

// Quad is the parallelogram spanned by Width and Height from Corner.
// Its triangles are emitted as (c, c+w, c+w+h) and (c, c+w+h, c+h), so a
// textured draw can recover the corner and both edges from them.
type Quad struct {
	Corner mgl32.Vec3
	Width  mgl32.Vec3
	Height mgl32.Vec3
}

// Triangle is a single triangle
type Triangle struct {
	A, B, C mgl32.Vec3
}

// Circle is a triangle fan around the origin
type Circle struct {
	Radius float32
	Points int
}

// Mesh is an indexed triangle list whose vertices come from a buffer source
// of packed xyz triplets. Without indices consecutive vertices form the
// triangles.
type Mesh struct {
	Vertices anim.Source
	Indices  []uint16
}

// DefaultQuad covers [-1,1]² in the xy plane
func DefaultQuad() *Quad {
	return &Quad{
		Corner: mgl32.Vec3{-1, -1, 0},
		Width:  mgl32.Vec3{2, 0, 0},
		Height: mgl32.Vec3{0, 2, 0},
	}
}

func (q *Quad) check() error {
	if q.Width.Cross(q.Height).Len() == 0 {
		return fmt.Errorf("%w: degenerate quad", ErrNode)
	}
	return nil
}

func (q *Quad) triangles(float64) ([]mgl32.Vec3, error) {
	c := q.Corner
	w := c.Add(q.Width)
	wh := w.Add(q.Height)
	h := c.Add(q.Height)
	return []mgl32.Vec3{c, w, wh, c, wh, h}, nil
}

func (tr *Triangle) check() error {
	if tr.B.Sub(tr.A).Cross(tr.C.Sub(tr.A)).Len() == 0 {
		return fmt.Errorf("%w: degenerate triangle", ErrNode)
	}
	return nil
}

func (tr *Triangle) triangles(float64) ([]mgl32.Vec3, error) {
	return []mgl32.Vec3{tr.A, tr.B, tr.C}, nil
}

func (c *Circle) check() error {
	if c.Points < 3 {
		return fmt.Errorf("%w: circle needs at least 3 points, got %d", ErrNode, c.Points)
	}
	if !(c.Radius > 0) {
		return fmt.Errorf("%w: circle radius must be positive, got %g", ErrNode, c.Radius)
	}
	return nil
}

func (c *Circle) triangles(float64) ([]mgl32.Vec3, error) {
	out := make([]mgl32.Vec3, 0, 3*c.Points)
	step := 2 * math.Pi / float64(c.Points)
	prev := mgl32.Vec3{c.Radius, 0, 0}
	for i := 1; i <= c.Points; i++ {
		a := step * float64(i)
		next := mgl32.Vec3{c.Radius * float32(math.Cos(a)), c.Radius * float32(math.Sin(a)), 0}
		if i == c.Points {
			next = mgl32.Vec3{c.Radius, 0, 0}
		}
		out = append(out, mgl32.Vec3{}, prev, next)
		prev = next
	}
	return out, nil
}

func (m *Mesh) check() error {
	if err := checkSource("mesh vertices", m.Vertices, anim.KindBuffer); err != nil {
		return err
	}
	v, err := m.Vertices.Evaluate(0)
	if err != nil {
		return err
	}
	n := v.Len()
	if n == 0 || n%3 != 0 {
		return fmt.Errorf("%w: mesh vertex buffer length %d is not a multiple of 3", ErrNode, n)
	}
	count := n / 3
	if m.Indices == nil {
		if count%3 != 0 {
			return fmt.Errorf("%w: %d unindexed vertices do not form triangles", ErrNode, count)
		}
		return nil
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: index count %d is not a multiple of 3", ErrNode, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= count {
			return fmt.Errorf("%w: index %d at %d is out of range (%d vertices)", ErrNode, idx, i, count)
		}
	}
	return nil
}

func (m *Mesh) triangles(at float64) ([]mgl32.Vec3, error) {
	v, err := m.Vertices.Evaluate(at)
	if err != nil {
		return nil, err
	}
	buf := v.Buffer()
	vertex := func(i int) mgl32.Vec3 {
		return mgl32.Vec3{buf[3*i], buf[3*i+1], buf[3*i+2]}
	}
	if m.Indices == nil {
		out := make([]mgl32.Vec3, len(buf)/3)
		for i := range out {
			out[i] = vertex(i)
		}
		return out, nil
	}
	out := make([]mgl32.Vec3, len(m.Indices))
	for i, idx := range m.Indices {
		out[i] = vertex(int(idx))
	}
	return out, nil
}
