package renderer

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/ivlev/scene2video/internal/scene"
)

// shader is the CPU counterpart of a program: a per-vertex displacement and
// a flat fill color.
type shader struct {
	fill   color.NRGBA64
	vertex func(mgl32.Vec3) mgl32.Vec3
}

func identity(p mgl32.Vec3) mgl32.Vec3 { return p }

func newShader(call *scene.DrawCall) (shader, error) {
	u := call.Uniforms
	switch call.Program {
	case scene.ColorProgram:
		return shader{fill: flat(u["color"].Color(), u["opacity"].Float()), vertex: identity}, nil

	case scene.VelocityProgram:
		scale := u["scale"].Float()
		v := 0.0
		if scale != 0 {
			v = clamp01(u["velocity"].Length() / scale)
		}
		return shader{fill: flat(mgl64.Vec4{v, v / 2, 0, 1}, 1), vertex: identity}, nil

	case scene.DistortProgram:
		vel := u["velocity"].Vec3()
		return shader{
			fill:   flat(u["color"].Color(), u["opacity"].Float()),
			vertex: distort(mgl32.Vec3{float32(vel[0]), float32(vel[1]), float32(vel[2])}, float32(u["distort_max"].Float())),
		}, nil
	}
	return shader{}, fmt.Errorf("program %s cannot fill geometry", call.Program.Name)
}

// distort pushes back the side of the shape facing away from the motion
func distort(velocity mgl32.Vec3, limit float32) func(mgl32.Vec3) mgl32.Vec3 {
	vl := velocity.Len()
	if vl == 0 {
		return identity
	}
	nv := velocity.Mul(-1 / vl)
	return func(p mgl32.Vec3) mgl32.Vec3 {
		pl := p.Len()
		if pl == 0 {
			return p
		}
		d := nv.Dot(p.Mul(1/pl)) / 2 * limit
		d = float32(clamp01(float64(d)))
		return p.Sub(velocity.Mul(d))
	}
}

func flat(c mgl64.Vec4, opacity float64) color.NRGBA64 {
	return color.NRGBA64{
		R: channel(c[0]),
		G: channel(c[1]),
		B: channel(c[2]),
		A: channel(c[3] * opacity),
	}
}

func toColor(c mgl32.Vec4) color.NRGBA64 {
	return flat(mgl64.Vec4{float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3])}, 1)
}

func channel(f float64) uint16 {
	return uint16(math.Round(clamp01(f) * 0xffff))
}

func clamp01(f float64) float64 {
	if !(f > 0) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
