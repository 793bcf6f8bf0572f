package scene

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ivlev/scene2video/internal/anim"
)

type fakeLoader struct {
	calls atomic.Int32
}

func (l *fakeLoader) LoadTexture(ref string) (image.Image, error) {
	l.calls.Add(1)
	if strings.HasPrefix(ref, "missing") {
		return nil, errors.New("not found")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	return img, nil
}

func mustBuild(t *testing.T, f *File) *Scene {
	t.Helper()
	s, err := Build(f, &fakeLoader{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s
}

func mustFrame(t *testing.T, s *Scene, at float64) *Frame {
	t.Helper()
	f, err := s.Evaluate(at)
	if err != nil {
		t.Fatalf("Evaluate(%g) failed: %v", at, err)
	}
	return f
}

func near(a, b mgl32.Vec3) bool {
	for i := range a {
		if !scalar.EqualWithinAbs(float64(a[i]), float64(b[i]), 1e-4) {
			return false
		}
	}
	return true
}

func TestBuiltinsBuild(t *testing.T) {
	want := []string{"rotate_scale", "square2circle", "velocity_circle_distort_2d", "velocity_circle_distort_3d", "velocity_triangle_rotate"}
	names := Names()
	if len(names) != len(want) {
		t.Fatalf("Expected built-ins %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Built-in %d: expected %s, got %s", i, want[i], names[i])
		}
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			f, err := Lookup(name)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			s := mustBuild(t, f)
			for _, at := range []float64{-1, 0, s.Duration / 3, s.Duration / 2, s.Duration, s.Duration + 1} {
				frame := mustFrame(t, s, at)
				if len(frame.Calls) == 0 {
					t.Errorf("No draw calls at t=%g", at)
				}
			}
		})
	}

	if _, err := Lookup("nope"); err == nil {
		t.Error("Expected an error for an unknown scene")
	}
}

func TestTriangleRotation(t *testing.T) {
	s := mustBuild(t, velocityTriangleRotate())
	frame := mustFrame(t, s, 2.5)
	if len(frame.Calls) != 2 {
		t.Fatalf("Expected 2 draw calls, got %d", len(frame.Calls))
	}

	circle, triangle := frame.Calls[0], frame.Calls[1]
	if circle.Program != VelocityProgram {
		t.Errorf("Expected the circle to use the velocity program, got %s", circle.Program.Name)
	}
	if v := circle.Uniforms["velocity"].Float(); v < 3000 {
		t.Errorf("Expected the angular velocity to peak above 3000 at mid time, got %g", v)
	}
	if got := len(circle.Triangles); got != 3*128 {
		t.Errorf("Expected %d circle vertices, got %d", 3*128, got)
	}

	// 540 degrees is half a turn
	p := triangle.Model.Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	if !near(p, mgl32.Vec3{-1, 0, 0}) {
		t.Errorf("Expected (1,0,0) to map to (-1,0,0), got %v", p)
	}
	if triangle.Path != "root/1/rotate" {
		t.Errorf("Unexpected draw path %q", triangle.Path)
	}
}

func TestSquareToCircle(t *testing.T) {
	s := mustBuild(t, squareToCircle())

	frame := mustFrame(t, s, 2.5)
	call := frame.Calls[0]
	if got := len(call.Triangles); got != 3*1024 {
		t.Fatalf("Expected %d vertices, got %d", 3*1024, got)
	}
	// vertex 129 is the first corner of the square, 45 degrees on the circle
	diag := float32(math.Sqrt2 / 2)
	if !near(call.Triangles[3*128+1], mgl32.Vec3{diag, diag, 0}) {
		t.Errorf("Expected vertex 129 on the circle, got %v", call.Triangles[3*128+1])
	}
	if c := call.Uniforms["color"].Color(); !c.ApproxEqualThreshold(mgl64.Vec4{1, 1, 1, 1}, 1e-9) {
		t.Errorf("Expected white at mid time, got %v", c)
	}
	p := call.Model.Mul4x1(mgl32.Vec4{1, 1, 0, 1}).Vec3()
	if !near(p, mgl32.Vec3{0.625, 0.625, 0}) {
		t.Errorf("Expected scale 0.625, got %v", p)
	}

	frame = mustFrame(t, s, 0)
	if !near(frame.Calls[0].Triangles[3*128+1], mgl32.Vec3{1, 1, 0}) {
		t.Errorf("Expected vertex 129 on the square corner, got %v", frame.Calls[0].Triangles[3*128+1])
	}
	if len(s.Sources) != 3 {
		t.Errorf("Expected tracks and velocity as sources, got %v", s.SourceNames())
	}
}

func TestTranslateCircle(t *testing.T) {
	s := mustBuild(t, velocityCircleDistort2D())
	p := equilateral(0.5)

	for i, at := range []float64{0, 4.0 / 3, 8.0 / 3, 4} {
		call := mustFrame(t, s, at).Calls[0]
		got := call.Model.Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
		want := p[i%3]
		if !near(got, mgl32.Vec3{float32(want[0]), float32(want[1]), 0}) {
			t.Errorf("At t=%g: expected the circle at %v, got %v", at, want, got)
		}
		if v := call.Uniforms["velocity"].Vec2(); i < 3 && v.Len() > 0.05 {
			t.Errorf("At keyframe %d expected a resting circle, got velocity %v", i, v)
		}
	}
	if v := mustFrame(t, s, 2.0/3).Calls[0].Uniforms["velocity"].Vec2(); v.Len() == 0 {
		t.Error("Expected the circle to move between keyframes")
	}
}

func TestCircleDistort3D(t *testing.T) {
	flat := mustBuild(t, velocityCircleDistort2D())
	deep := mustBuild(t, velocityCircleDistort3D())

	for _, at := range []float64{0, 0.5, 2.0 / 3, 2, 3.9} {
		a, b := mustFrame(t, flat, at).Calls[0], mustFrame(t, deep, at).Calls[0]
		if b.Uniforms["velocity"].Kind() != anim.KindVec3 {
			t.Fatalf("Expected a vec3 velocity, got %s", b.Uniforms["velocity"].Kind())
		}
		v2, v3 := a.Uniforms["velocity"].Vec2(), b.Uniforms["velocity"].Vec3()
		if !scalar.EqualWithinAbs(v2[0], v3[0], 1e-9) || !scalar.EqualWithinAbs(v2[1], v3[1], 1e-9) || v3[2] != 0 {
			t.Errorf("At t=%g: expected velocity %v, got %v", at, v2, v3)
		}
		if !a.Model.ApproxEqual(b.Model) {
			t.Errorf("At t=%g: expected the same translation", at)
		}
	}
}

func TestTextureLoading(t *testing.T) {
	loader := &fakeLoader{}
	f := rotateScale()
	f.Root.Rotate.Child.Scale.Child = NodeSpec{Group: []NodeSpec{
		f.Root.Rotate.Child.Scale.Child,
		f.Root.Rotate.Child.Scale.Child,
	}}

	s, err := Build(f, loader)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("Expected one load per distinct texture, got %d", got)
	}
	frame := mustFrame(t, s, 1)
	for _, call := range frame.Calls {
		if call.Texture == nil {
			t.Errorf("Draw %s has no texture", call.Path)
		}
	}

	f = rotateScale()
	f.Root.Rotate.Child.Scale.Child.Draw.Texture = "missing.png"
	if _, err := Build(f, loader); err == nil || !strings.Contains(err.Error(), "missing.png") {
		t.Errorf("Expected a texture error, got %v", err)
	}
	if _, err := Build(rotateScale(), nil); err == nil {
		t.Error("Expected an error without a texture loader")
	}
}

func TestBindingErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *File)
		want   error
	}{
		{
			name:   "unknown uniform",
			mutate: func(f *File) { f.Root.Group[0].Draw.Uniforms["speed"] = Const(1) },
			want:   ErrBinding,
		},
		{
			name:   "unbound uniform",
			mutate: func(f *File) { delete(f.Root.Group[0].Draw.Uniforms, "scale") },
			want:   ErrBinding,
		},
		{
			name:   "wrong kind",
			mutate: func(f *File) { f.Root.Group[1].Rotate.Child.Draw.Uniforms["opacity"] = Const(1, 2) },
			want:   ErrBinding,
		},
		{
			name:   "unknown source",
			mutate: func(f *File) { f.Root.Group[0].Draw.Uniforms["velocity"] = Ref("nothing") },
			want:   ErrBinding,
		},
		{
			name:   "unknown program",
			mutate: func(f *File) { f.Root.Group[0].Draw.Program = "phong" },
			want:   ErrBinding,
		},
		{
			name:   "bad circle",
			mutate: func(f *File) { f.Root.Group[0].Draw.Geometry.Points = 2 },
			want:   ErrNode,
		},
		{
			name:   "rotate by vector",
			mutate: func(f *File) { f.Root.Group[1].Rotate.Angle = Const(1, 2, 3) },
			want:   ErrNode,
		},
		{
			name:   "empty node",
			mutate: func(f *File) { f.Root.Group[1] = NodeSpec{} },
			want:   ErrNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := velocityTriangleRotate()
			tt.mutate(f)
			_, err := Build(f, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			var pe *PathError
			if !errors.As(err, &pe) || !strings.HasPrefix(pe.Path, "root/") {
				t.Errorf("Expected a node path in %v", err)
			}
		})
	}
}

func TestTrackErrors(t *testing.T) {
	f := velocityTriangleRotate()
	f.Tracks["angle"].Keyframes[1].Time = -1
	_, err := Build(f, nil)
	if !errors.Is(err, anim.ErrValidation) {
		t.Errorf("Expected a validation error, got %v", err)
	}

	f = velocityTriangleRotate()
	f.Velocities["angle"] = "angle"
	if _, err := Build(f, nil); err == nil {
		t.Error("Expected an error for a velocity shadowing a track")
	}

	f = velocityTriangleRotate()
	f.Tracks["angle"].Keyframes[0].Easing = "wobbly"
	if _, err := Build(f, nil); err == nil {
		t.Error("Expected an error for an unknown easing")
	}

	f = velocityTriangleRotate()
	f.Tracks["angle"].Keyframes[0].Offsets = []float64{0.5}
	if _, err := Build(f, nil); err == nil {
		t.Error("Expected an error for a single offset")
	}

	for _, name := range []string{"1", "2.5", "true", "null"} {
		f = velocityTriangleRotate()
		f.Tracks[name] = f.Tracks["angle"]
		if _, err := Build(f, nil); err == nil {
			t.Errorf("Expected an error for the track name %q", name)
		}
		f = velocityTriangleRotate()
		f.Velocities[name] = "angle"
		if _, err := Build(f, nil); err == nil {
			t.Errorf("Expected an error for the velocity name %q", name)
		}
	}
}

func TestMeshBufferLengths(t *testing.T) {
	f := squareToCircle()
	kfs := f.Tracks["vertices"].Keyframes
	kfs[1].Value = kfs[1].Value[:len(kfs[1].Value)-3]

	_, err := Build(f, nil)
	if !errors.Is(err, anim.ErrValidation) || !errors.Is(err, anim.ErrShapeMismatch) {
		t.Fatalf("Expected a shape validation error, got %v", err)
	}

	// every frame of an accepted mesh has the vertex count checked at build
	s := mustBuild(t, squareToCircle())
	for _, at := range []float64{-1, 0, 1.25, 2.5, 5, 6} {
		if n := len(mustFrame(t, s, at).Calls[0].Triangles); n != 3*1024 {
			t.Errorf("At t=%g: expected %d vertices, got %d", at, 3*1024, n)
		}
	}
}

func TestSceneValidate(t *testing.T) {
	draw, err := NewDraw(DefaultQuad(), ColorProgram, map[string]anim.Source{
		"color":   anim.Constant{Value: anim.Vec3([3]float64{1, 0, 0})},
		"opacity": anim.Constant{Value: anim.Float(1)},
	})
	if err != nil {
		t.Fatalf("NewDraw failed: %v", err)
	}
	if k := draw.Uniforms["color"].Kind(); k != anim.KindColor {
		t.Errorf("Expected a vec3 constant to bind as color, got %s", k)
	}

	if _, err := New("ok", 1, [2]int{16, 9}, draw); err != nil {
		t.Errorf("New failed: %v", err)
	}
	if _, err := New("zero", 0, [2]int{1, 1}, draw); err == nil {
		t.Error("Expected an error for a zero duration")
	}
	if _, err := New("aspect", 1, [2]int{0, 1}, draw); err == nil {
		t.Error("Expected an error for a zero aspect ratio")
	}
	if _, err := New("nil", 1, [2]int{1, 1}, &Group{Children: []Node{nil}}); !errors.Is(err, ErrNode) {
		t.Errorf("Expected ErrNode for a nil child, got %v", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := Write(velocityCircleDistort2D(), path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := mustBuild(t, velocityCircleDistort2D())
	got := mustBuild(t, f)
	for _, at := range []float64{0.3, 1.9, 3.5} {
		a := mustFrame(t, want, at).Calls[0]
		b := mustFrame(t, got, at).Calls[0]
		if !a.Model.ApproxEqual(b.Model) {
			t.Errorf("At t=%g: model %v after round trip, want %v", at, b.Model, a.Model)
		}
		if !a.Uniforms["velocity"].Equal(b.Uniforms["velocity"]) {
			t.Errorf("At t=%g: velocity %v after round trip, want %v", at, b.Uniforms["velocity"], a.Uniforms["velocity"])
		}
	}
}

func TestDecode(t *testing.T) {
	doc := `
version: "1.0"
name: pulse
duration: 2
aspect_ratio: [16, 9]
clear_color: [0.2, 0.2, 0.2]
tracks:
  opacity:
    kind: float
    keyframes:
      - {time: 0, value: 0, easing: back_out, args: [2]}
      - {time: 1, value: 1, easing: sinus_in, offsets: [0.25, 0.75]}
      - {time: 2, value: 0}
velocities:
  fade: opacity
root:
  translate:
    vector: [0.5, 0]
    child:
      draw:
        geometry: {type: triangle, corners: [[0, 0], [1, 0], [0, 1]]}
        program: color
        uniforms:
          color: [1, 0.5, 0, 1]
          opacity: opacity
`
	f, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := f.Root.Translate.Child.Draw.Uniforms["opacity"]; b.Ref != "opacity" {
		t.Errorf("Expected a reference binding, got %+v", b)
	}
	if b := f.Root.Translate.Vector; len(b.Value) != 2 {
		t.Errorf("Expected a constant binding, got %+v", b)
	}

	s := mustBuild(t, f)
	if s.Aspect() != 16.0/9 {
		t.Errorf("Expected aspect 16/9, got %g", s.Aspect())
	}
	if s.ClearColor != (mgl32.Vec4{0.2, 0.2, 0.2, 1}) {
		t.Errorf("Unexpected clear color %v", s.ClearColor)
	}
	call := mustFrame(t, s, 1).Calls[0]
	if o := call.Uniforms["opacity"].Float(); o != 1 {
		t.Errorf("Expected opacity 1 at t=1, got %g", o)
	}
	if _, ok := s.Sources["fade"].(*anim.VelocityNode); !ok {
		t.Errorf("Expected fade to be a velocity node, got %T", s.Sources["fade"])
	}

	if _, err := Decode(strings.NewReader("name: x\nbogus: 1\n")); err == nil {
		t.Error("Expected an error for an unknown field")
	}
	if _, err := Decode(strings.NewReader("name: x\nclear_color: {r: 1}\n")); err == nil {
		t.Error("Expected an error for a mapping where numbers belong")
	}
}

func TestEncodeBindings(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, &File{
		Name: "enc",
		Root: NodeSpec{Scale: &ScaleSpec{
			Factors: Const(2),
			Child: NodeSpec{Translate: &TranslateSpec{
				Vector: Ref("path"),
				Child:  NodeSpec{Group: []NodeSpec{}},
			}},
		}},
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"factors: 2", "vector: path"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestMeshChecks(t *testing.T) {
	verts := anim.Constant{Value: anim.Buffer([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0})}

	if err := (&Mesh{Vertices: verts}).check(); err != nil {
		t.Errorf("Unexpected error for an unindexed triangle: %v", err)
	}
	if err := (&Mesh{Vertices: verts, Indices: []uint16{0, 1, 3}}).check(); !errors.Is(err, ErrNode) {
		t.Errorf("Expected ErrNode for an index out of range, got %v", err)
	}
	if err := (&Mesh{Vertices: verts, Indices: []uint16{0, 1}}).check(); !errors.Is(err, ErrNode) {
		t.Errorf("Expected ErrNode for a partial triangle, got %v", err)
	}
	if err := (&Mesh{Vertices: anim.Constant{Value: anim.Float(1)}}).check(); !errors.Is(err, ErrNode) {
		t.Errorf("Expected ErrNode for scalar vertices, got %v", err)
	}

	tris, err := (&Mesh{Vertices: verts, Indices: []uint16{2, 1, 0}}).triangles(0)
	if err != nil {
		t.Fatalf("triangles failed: %v", err)
	}
	if tris[0] != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("Expected indexed order, got %v", tris)
	}
}

func TestCircleClosed(t *testing.T) {
	c := &Circle{Radius: 0.5, Points: 16}
	tris, _ := c.triangles(0)
	first, last := tris[1], tris[len(tris)-1]
	if first != last {
		t.Errorf("Expected the fan to close at %v, got %v", first, last)
	}
	for _, v := range tris {
		if l := v.Len(); l != 0 && math.Abs(float64(l)-0.5) > 1e-6 {
			t.Errorf("Rim vertex %v off the circle", v)
		}
	}
}
