// Package scene holds the animated scene graph: transform nodes, draw nodes
// binding animation sources to program uniforms, the YAML file format and
// the table of built-in scenes.
package scene

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ivlev/scene2video/internal/anim"
)

// Scene is a validated scene graph with its timing
type Scene struct {
	Name        string
	Duration    float64
	AspectRatio [2]int
	ClearColor  mgl32.Vec4
	Root        Node

	// Sources lists named tracks and velocity nodes for baking
	Sources map[string]anim.Source
}

// Frame is the flattened scene at one point in time
type Frame struct {
	Time  float64
	Calls []DrawCall
}

// DrawCall is one draw node with its composed model matrix and its
// uniforms evaluated
type DrawCall struct {
	Path      string
	Model     mgl32.Mat4
	Triangles []mgl32.Vec3
	Program   *Program
	Uniforms  map[string]anim.Value
	Texture   image.Image
}

// New validates root and returns a scene with a black clear color
func New(name string, duration float64, aspect [2]int, root Node) (*Scene, error) {
	s := &Scene{
		Name:        name,
		Duration:    duration,
		AspectRatio: aspect,
		ClearColor:  mgl32.Vec4{0, 0, 0, 1},
		Root:        root,
		Sources:     map[string]anim.Source{},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks timing and the whole node tree
func (s *Scene) Validate() error {
	if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("scene %s: duration must be positive, got %g", s.Name, s.Duration)
	}
	if s.AspectRatio[0] <= 0 || s.AspectRatio[1] <= 0 {
		return fmt.Errorf("scene %s: invalid aspect ratio %d:%d", s.Name, s.AspectRatio[0], s.AspectRatio[1])
	}
	if err := check(s.Root, "root"); err != nil {
		return fmt.Errorf("scene %s: %w", s.Name, err)
	}
	return nil
}

// Aspect returns width / height
func (s *Scene) Aspect() float64 {
	return float64(s.AspectRatio[0]) / float64(s.AspectRatio[1])
}

// SourceNames returns the names of Sources in sorted order
func (s *Scene) SourceNames() []string {
	names := make([]string, 0, len(s.Sources))
	for name := range s.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate flattens the graph at time at. It only reads the graph, so
// frames can be evaluated concurrently.
func (s *Scene) Evaluate(at float64) (*Frame, error) {
	f := &Frame{Time: at}
	if err := s.walk(f, s.Root, mgl32.Ident4(), "root", at); err != nil {
		return nil, fmt.Errorf("scene %s at t=%g: %w", s.Name, at, err)
	}
	return f, nil
}

func (s *Scene) walk(f *Frame, n Node, model mgl32.Mat4, path string, at float64) error {
	switch n := n.(type) {
	case *Group:
		for i, c := range n.Children {
			if err := s.walk(f, c, model, fmt.Sprintf("%s/%d", path, i), at); err != nil {
				return err
			}
		}
	case *Rotate:
		v, err := n.Angle.Evaluate(at)
		if err != nil {
			return &PathError{Path: path, Err: err}
		}
		rot := mgl32.HomogRotate3D(radians(v.Float()), n.Axis.Normalize())
		m := mgl32.Translate3D(n.Anchor.Elem()).Mul4(rot).Mul4(mgl32.Translate3D(-n.Anchor.X(), -n.Anchor.Y(), -n.Anchor.Z()))
		return s.walk(f, n.Child, model.Mul4(m), path+"/rotate", at)
	case *Translate:
		v, err := n.Vector.Evaluate(at)
		if err != nil {
			return &PathError{Path: path, Err: err}
		}
		d := v.Vec3()
		return s.walk(f, n.Child, model.Mul4(mgl32.Translate3D(float32(d[0]), float32(d[1]), float32(d[2]))), path+"/translate", at)
	case *Scale:
		v, err := n.Factors.Evaluate(at)
		if err != nil {
			return &PathError{Path: path, Err: err}
		}
		var fx, fy, fz float32
		if v.Kind() == anim.KindScalar {
			fx = float32(v.Float())
			fy, fz = fx, fx
		} else {
			d := v.Vec3()
			fx, fy, fz = float32(d[0]), float32(d[1]), float32(d[2])
		}
		m := mgl32.Translate3D(n.Anchor.Elem()).
			Mul4(mgl32.Scale3D(fx, fy, fz)).
			Mul4(mgl32.Translate3D(-n.Anchor.X(), -n.Anchor.Y(), -n.Anchor.Z()))
		return s.walk(f, n.Child, model.Mul4(m), path+"/scale", at)
	case *Draw:
		call, err := evaluateDraw(n, model, path, at)
		if err != nil {
			return err
		}
		f.Calls = append(f.Calls, call)
	default:
		return &PathError{Path: path, Err: fmt.Errorf("%w: unsupported node %T", ErrNode, n)}
	}
	return nil
}

func evaluateDraw(d *Draw, model mgl32.Mat4, path string, at float64) (DrawCall, error) {
	tris, err := d.Geometry.triangles(at)
	if err != nil {
		return DrawCall{}, &PathError{Path: path, Err: err}
	}
	uniforms := make(map[string]anim.Value, len(d.Uniforms))
	for name, src := range d.Uniforms {
		v, err := src.Evaluate(at)
		if err != nil {
			return DrawCall{}, &PathError{Path: path, Err: fmt.Errorf("uniform %s: %w", name, err)}
		}
		uniforms[name] = v
	}
	return DrawCall{
		Path:      path,
		Model:     model,
		Triangles: tris,
		Program:   d.Program,
		Uniforms:  uniforms,
		Texture:   d.Texture,
	}, nil
}
