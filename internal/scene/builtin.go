package scene

import (
	"fmt"
	"math"
	"sort"
)

// Builder returns a fresh description of a built-in scene
type Builder func() *File

var registry = map[string]Builder{}

// Register adds a built-in scene. It panics on duplicate names and is only
// called from init.
func Register(name string, b Builder) {
	if _, dup := registry[name]; dup {
		panic("scene: duplicate built-in " + name)
	}
	registry[name] = b
}

// Lookup returns the description of the built-in scene called name
func Lookup(name string) (*File, error) {
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene %q (available: %v)", name, Names())
	}
	return b(), nil
}

// Names lists the built-in scenes in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("velocity_triangle_rotate", velocityTriangleRotate)
	Register("velocity_circle_distort_2d", velocityCircleDistort2D)
	Register("velocity_circle_distort_3d", velocityCircleDistort3D)
	Register("square2circle", squareToCircle)
	Register("rotate_scale", rotateScale)
}

var white = Const(1, 1, 1)

// equilateral returns the corners of an equilateral triangle, apex up,
// vertically balanced around the origin
func equilateral(size float64) [3][2]float64 {
	b := size * math.Sqrt(3) / 2
	c := size / 2
	off := (c - size) / 2
	return [3][2]float64{{-b, off - c}, {b, off - c}, {0, size + off}}
}

// A triangle spinning three turns with the circle behind it lit by the
// angular velocity.
func velocityTriangleRotate() *File {
	const duration = 5.0
	p := equilateral(2)
	return &File{
		Version:     "1.0",
		Name:        "velocity_triangle_rotate",
		Duration:    duration,
		AspectRatio: []int{1, 1},
		Tracks: map[string]TrackSpec{
			"angle": {Kind: "float", Keyframes: []KeyframeSpec{
				{Time: 0, Value: Components{0}, Easing: "circular_in_out"},
				{Time: duration, Value: Components{360 * 3}},
			}},
		},
		Velocities: map[string]string{"angle_velocity": "angle"},
		Root: NodeSpec{Group: []NodeSpec{
			{Draw: &DrawSpec{
				Geometry: GeometrySpec{Type: "circle", Radius: 1, Points: 128},
				Program:  "velocity",
				Uniforms: map[string]Binding{
					"velocity": Ref("angle_velocity"),
					"scale":    Const(3000),
				},
			}},
			{Rotate: &RotateSpec{
				Angle: Ref("angle"),
				Child: NodeSpec{Draw: &DrawSpec{
					Geometry: GeometrySpec{Type: "triangle", Corners: []Components{
						{p[0][0], p[0][1], 0},
						{p[1][0], p[1][1], 0},
						{p[2][0], p[2][1], 0},
					}},
					Program:  "color",
					Uniforms: map[string]Binding{"color": white, "opacity": Const(1)},
				}},
			}},
		}},
	}
}

// A small circle travelling around a triangle, squashed against its
// direction of motion.
func velocityCircleDistort2D() *File {
	return circleDistort("velocity_circle_distort_2d", "vec2")
}

// Same path as the 2d scene, with the position and velocity kept as vec3
func velocityCircleDistort3D() *File {
	return circleDistort("velocity_circle_distort_3d", "vec3")
}

func circleDistort(name, kind string) *File {
	const duration = 4.0
	p := equilateral(0.5)
	corners := [][2]float64{p[0], p[1], p[2], p[0]}
	kfs := make([]KeyframeSpec, len(corners))
	for i, c := range corners {
		v := Components{c[0], c[1]}
		if kind == "vec3" {
			v = append(v, 0)
		}
		kfs[i] = KeyframeSpec{
			Time:   duration * float64(i) / 3,
			Value:  v,
			Easing: "exp_in_out",
		}
	}
	return &File{
		Version:     "1.0",
		Name:        name,
		Duration:    duration,
		AspectRatio: []int{1, 1},
		Tracks: map[string]TrackSpec{
			"position": {Kind: kind, Keyframes: kfs},
		},
		Velocities: map[string]string{"position_velocity": "position"},
		Root: NodeSpec{Translate: &TranslateSpec{
			Vector: Ref("position"),
			Child: NodeSpec{Draw: &DrawSpec{
				Geometry: GeometrySpec{Type: "circle", Radius: 0.2, Points: 128},
				Program:  "distort",
				Uniforms: map[string]Binding{
					"velocity":    Ref("position_velocity"),
					"distort_max": Const(0.1),
					"color":       white,
					"opacity":     Const(1),
				},
			}},
		}},
	}
}

// A square of many vertices morphing into a circle and back
func squareToCircle() *File {
	const (
		duration = 5.0
		n        = 1024
		scale    = 0.625
		interp   = "exp_in_out"
	)

	square := func(x float64) float64 {
		return math.Min(math.Max(4*math.Abs(2*math.Mod(x+0.75, 1)-1)-2, -1), 1)
	}
	squareVerts := Components{0, 0, 0}
	circleVerts := Components{0, 0, 0}
	for i := 0; i < n; i++ {
		f := float64(i) / n
		squareVerts = append(squareVerts, square(f+0.25), square(f), 0)
		a := f * 2 * math.Pi
		circleVerts = append(circleVerts, math.Cos(a), math.Sin(a), 0)
	}

	indices := make([]uint16, 0, 3*n)
	for i := 1; i <= n; i++ {
		indices = append(indices, 0, uint16(i), uint16(i+1))
	}
	indices[len(indices)-1] = 1

	squareColor := Components{0.9, 0.1, 0.3}
	circleColor := Components{1, 1, 1}

	vertices := thereAndBack(squareVerts, circleVerts, duration, interp)
	colors := thereAndBack(squareColor, circleColor, duration, interp)

	return &File{
		Version:     "1.0",
		Name:        "square2circle",
		Duration:    duration,
		AspectRatio: []int{1, 1},
		Tracks: map[string]TrackSpec{
			"vertices": {Kind: "buffer", Keyframes: vertices},
			"color":    {Kind: "color", Keyframes: colors},
		},
		Velocities: map[string]string{"color_velocity": "color"},
		Root: NodeSpec{Scale: &ScaleSpec{
			Factors: Const(scale, scale, 1),
			Child: NodeSpec{Draw: &DrawSpec{
				Geometry: GeometrySpec{Type: "mesh", Vertices: &Binding{Ref: "vertices"}, Indices: indices},
				Program:  "color",
				Uniforms: map[string]Binding{"color": Ref("color"), "opacity": Const(1)},
			}},
		}},
	}
}

// thereAndBack goes from a to b at half time and back to a
func thereAndBack(a, b Components, duration float64, interp string) []KeyframeSpec {
	return []KeyframeSpec{
		{Time: 0, Value: a, Easing: interp},
		{Time: duration / 2, Value: b, Easing: interp},
		{Time: duration, Value: a},
	}
}

// A textured quad growing and spinning
func rotateScale() *File {
	const duration = 5.0
	return &File{
		Version:     "1.0",
		Name:        "rotate_scale",
		Duration:    duration,
		AspectRatio: []int{1, 1},
		ClearColor:  Components{0.1, 0.1, 0.1, 1},
		Tracks: map[string]TrackSpec{
			"scale": {Kind: "vec3", Keyframes: []KeyframeSpec{
				{Time: 0, Value: Components{0.1, 0.1, 1}, Easing: "quartic_out"},
				{Time: duration / 2, Value: Components{0.8, 0.8, 1}, Easing: "quartic_out"},
				{Time: duration, Value: Components{0.5, 0.5, 1}},
			}},
			"angle": {Kind: "float", Keyframes: []KeyframeSpec{
				{Time: 0, Value: Components{0}, Easing: "exp_out"},
				{Time: duration, Value: Components{360}},
			}},
		},
		Velocities: map[string]string{"angle_velocity": "angle", "scale_velocity": "scale"},
		Root: NodeSpec{Rotate: &RotateSpec{
			Angle: Ref("angle"),
			Child: NodeSpec{Scale: &ScaleSpec{
				Factors: Ref("scale"),
				Child: NodeSpec{Draw: &DrawSpec{
					Geometry: GeometrySpec{Type: "quad"},
					Program:  "texture",
					Uniforms: map[string]Binding{"opacity": Const(1)},
					Texture:  "qr:scene2video",
				}},
			}},
		}},
	}
}
