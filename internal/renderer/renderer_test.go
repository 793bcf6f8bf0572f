package renderer

import (
	"image"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ivlev/scene2video/internal/anim"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/system"
)

func builtin(t *testing.T, name string) *scene.Scene {
	t.Helper()
	f, err := scene.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	s, err := scene.Build(f, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return s
}

func render(t *testing.T, s *scene.Scene, opts Options, at float64) *image.RGBA {
	t.Helper()
	r, err := New(s, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	frame, err := s.Evaluate(at)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	img, err := r.Render(frame, 0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	t.Cleanup(func() { system.PutImage(img) })
	return img
}

func TestVelocityTriangleRotate(t *testing.T) {
	s := builtin(t, "velocity_triangle_rotate")
	img := render(t, s, Options{Width: 64, Height: 64}, 2.5)

	if c := img.RGBAAt(32, 32); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected the white triangle at the center, got %v", c)
	}
	// Inside the circle, outside the flipped triangle
	c := img.RGBAAt(57, 48)
	if c.R < 250 || c.G < 120 || c.G > 136 || c.B > 5 {
		t.Errorf("Expected full speed orange at (57,48), got %v", c)
	}
	// The flipped triangle reaches the top corners, the bottom ones stay clear
	if c := img.RGBAAt(0, 63); c != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected the clear color in the corner, got %v", c)
	}
	if c := img.RGBAAt(0, 0); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected the flipped triangle in the top corner, got %v", c)
	}

	img = render(t, s, Options{Width: 64, Height: 64}, 0)
	if c := img.RGBAAt(57, 16); c.R != 0 || c.G != 0 {
		t.Errorf("Expected a resting circle to stay black, got %v", c)
	}
}

func TestRenderAllBuiltins(t *testing.T) {
	for _, name := range scene.Names() {
		if name == "rotate_scale" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			s := builtin(t, name)
			img := render(t, s, Options{Width: 48, Height: 48}, s.Duration/3)
			lit := 0
			for y := 0; y < 48; y++ {
				for x := 0; x < 48; x++ {
					if c := img.RGBAAt(x, y); c.R > 0 || c.G > 0 || c.B > 0 {
						lit++
					}
				}
			}
			if lit == 0 {
				t.Error("Expected a non-empty frame")
			}
		})
	}
}

func texturedScene(t *testing.T, opacity float64) *scene.Scene {
	t.Helper()
	tex := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range tex.Pix {
		if i%4 == 0 || i%4 == 3 {
			tex.Pix[i] = 255
		}
	}
	draw := &scene.Draw{
		Geometry: scene.DefaultQuad(),
		Program:  scene.TextureProgram,
		Uniforms: map[string]anim.Source{"opacity": anim.Constant{Value: anim.Float(opacity)}},
		Texture:  tex,
	}
	s, err := scene.New("textured", 1, [2]int{1, 1}, draw)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestTexturedQuad(t *testing.T) {
	img := render(t, texturedScene(t, 1), Options{Width: 32, Height: 32}, 0)
	if c := img.RGBAAt(16, 16); c.R != 255 || c.G != 0 {
		t.Errorf("Expected an opaque red texture, got %v", c)
	}

	img = render(t, texturedScene(t, 0.5), Options{Width: 32, Height: 32}, 0)
	if c := img.RGBAAt(16, 16); c.R < 120 || c.R > 135 || c.G != 0 {
		t.Errorf("Expected red at half opacity over black, got %v", c)
	}
}

func TestLetterbox(t *testing.T) {
	s := texturedScene(t, 1)
	img := render(t, s, Options{Width: 64, Height: 32}, 0)

	if c := img.RGBAAt(2, 16); c.R != 0 {
		t.Errorf("Expected a black bar on the left, got %v", c)
	}
	if c := img.RGBAAt(32, 16); c.R != 255 {
		t.Errorf("Expected the quad in the middle, got %v", c)
	}
	if vp := fit(64, 32, 1); vp != image.Rect(16, 0, 48, 32) {
		t.Errorf("Unexpected viewport %v", vp)
	}
	if vp := fit(160, 90, 16.0/9); vp != image.Rect(0, 0, 160, 90) {
		t.Errorf("Unexpected viewport %v", vp)
	}
}

func TestDistort(t *testing.T) {
	f := distort(mgl32.Vec3{1, 0, 0}, 0.1)

	if got := f(mgl32.Vec3{-1, 0, 0}); !got.ApproxEqual(mgl32.Vec3{-1.05, 0, 0}) {
		t.Errorf("Expected the trailing side pushed back, got %v", got)
	}
	if got := f(mgl32.Vec3{1, 0, 0}); got != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("Expected the leading side untouched, got %v", got)
	}
	if got := f(mgl32.Vec3{}); got != (mgl32.Vec3{}) {
		t.Errorf("Expected the center untouched, got %v", got)
	}
	if got := distort(mgl32.Vec3{}, 0.1)(mgl32.Vec3{1, 2, 3}); got != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("Expected no distortion at rest, got %v", got)
	}
}

func TestHUD(t *testing.T) {
	s := texturedScene(t, 0)
	img := render(t, s, Options{Width: 160, Height: 40, Debug: true}, 0)
	yellow := 0
	for y := 0; y < 20; y++ {
		for x := 0; x < 160; x++ {
			if c := img.RGBAAt(x, y); c.R == 255 && c.G == 255 && c.B == 0 {
				yellow++
			}
		}
	}
	if yellow == 0 {
		t.Error("Expected HUD text in the top left corner")
	}
}

func TestInvalidSize(t *testing.T) {
	if _, err := New(texturedScene(t, 1), Options{}); err == nil {
		t.Error("Expected an error for a zero frame size")
	}
}

func TestClip(t *testing.T) {
	rect := [4]float32{0, 0, 10, 10}

	tests := []struct {
		name string
		tri  [][2]float32
		n    int
	}{
		{name: "inside", tri: [][2]float32{{1, 1}, {9, 1}, {1, 9}}, n: 3},
		{name: "outside", tri: [][2]float32{{-5, -5}, {-1, -5}, {-5, -1}}, n: 0},
		{name: "one corner out", tri: [][2]float32{{5, 5}, {15, 5}, {5, 8}}, n: 4},
		{name: "covers frame", tri: [][2]float32{{-100, -100}, {300, -100}, {-100, 300}}, n: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clip(append([][2]float32(nil), tt.tri...), nil, rect)
			if len(got) != tt.n {
				t.Fatalf("Expected %d vertices, got %v", tt.n, got)
			}
			for _, p := range got {
				if p[0] < 0 || p[0] > 10 || p[1] < 0 || p[1] > 10 {
					t.Errorf("Vertex %v outside the frame", p)
				}
			}
		})
	}
}
