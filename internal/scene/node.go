package scene

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ivlev/scene2video/internal/anim"
)

var (
	// ErrBinding reports a uniform that does not match its program
	ErrBinding = errors.New("invalid uniform binding")

	// ErrNode reports a malformed node or geometry
	ErrNode = errors.New("invalid node")
)

// Node is a scene graph node. The set of implementations is closed.
type Node interface {
	node()
}

// Group draws its children in order
type Group struct {
	Children []Node
}

// Draw renders a geometry with a program. Uniforms maps every slot of the
// program to a source.
type Draw struct {
	Geometry Geometry
	Program  *Program
	Uniforms map[string]anim.Source
	Texture  image.Image
}

// Rotate rotates its child by Angle degrees around Axis through Anchor
type Rotate struct {
	Child  Node
	Angle  anim.Source
	Axis   mgl32.Vec3
	Anchor mgl32.Vec3
}

// Translate moves its child by a vec2 or vec3 Vector
type Translate struct {
	Child  Node
	Vector anim.Source
}

// Scale scales its child around Anchor. Factors is a vec3 or a scalar
// applied to all three axes.
type Scale struct {
	Child   Node
	Factors anim.Source
	Anchor  mgl32.Vec3
}

func (*Group) node()     {}
func (*Draw) node()      {}
func (*Rotate) node()    {}
func (*Translate) node() {}
func (*Scale) node()     {}

// NewDraw checks uniforms against the program and returns the draw node
func NewDraw(geom Geometry, prog *Program, uniforms map[string]anim.Source) (*Draw, error) {
	d := &Draw{Geometry: geom, Program: prog, Uniforms: uniforms}
	if err := d.check(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Draw) check() error {
	if d.Geometry == nil {
		return fmt.Errorf("%w: draw without geometry", ErrNode)
	}
	if err := d.Geometry.check(); err != nil {
		return err
	}
	if d.Program == nil {
		return fmt.Errorf("%w: draw without program", ErrNode)
	}
	if d.Program.Textured {
		if d.Texture == nil {
			return fmt.Errorf("%w: program %s needs a texture", ErrBinding, d.Program.Name)
		}
		if _, ok := d.Geometry.(*Quad); !ok {
			return fmt.Errorf("%w: program %s only draws quads", ErrNode, d.Program.Name)
		}
	}
	bound, err := bind(d.Program, d.Uniforms)
	if err != nil {
		return err
	}
	d.Uniforms = bound
	return nil
}

func checkSource(what string, src anim.Source, kinds ...anim.Kind) error {
	if src == nil {
		return fmt.Errorf("%w: %s is not set", ErrNode, what)
	}
	for _, k := range kinds {
		if src.Kind() == k {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %v, got %s", ErrNode, what, kinds, src.Kind())
}

// check validates the subtree rooted at n and reports the path of the first
// bad node.
func check(n Node, path string) error {
	var err error
	switch n := n.(type) {
	case *Group:
		for i, c := range n.Children {
			if err := check(c, fmt.Sprintf("%s/%d", path, i)); err != nil {
				return err
			}
		}
		return nil
	case *Draw:
		err = n.check()
	case *Rotate:
		if err = checkSource("rotate angle", n.Angle, anim.KindScalar); err == nil {
			if n.Axis.Len() == 0 {
				n.Axis = mgl32.Vec3{0, 0, 1}
			}
			err = check(n.Child, path+"/rotate")
		}
	case *Translate:
		if err = checkSource("translate vector", n.Vector, anim.KindVec2, anim.KindVec3); err == nil {
			err = check(n.Child, path+"/translate")
		}
	case *Scale:
		if err = checkSource("scale factors", n.Factors, anim.KindVec3, anim.KindScalar); err == nil {
			err = check(n.Child, path+"/scale")
		}
	case nil:
		err = fmt.Errorf("%w: missing node", ErrNode)
	default:
		err = fmt.Errorf("%w: unsupported node %T", ErrNode, n)
	}
	if err != nil && !isPathed(err) {
		return &PathError{Path: path, Err: err}
	}
	return err
}

// PathError locates a validation failure in the graph
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func isPathed(err error) bool {
	var pe *PathError
	return errors.As(err, &pe)
}

func radians(deg float64) float32 {
	return float32(deg * math.Pi / 180)
}
