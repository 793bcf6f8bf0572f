package anim

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind is the shape of an animated value
type Kind uint8

const (
	KindScalar Kind = iota
	KindVec2
	KindVec3
	KindVec4
	KindColor
	KindBuffer
)

var kindNames = [...]string{"float", "vec2", "vec3", "vec4", "color", "buffer"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind maps a kind name (as printed by String) back to a Kind
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "scalar" {
		return KindScalar, nil
	}
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return KindScalar, fmt.Errorf("unknown value kind %q", name)
}

// Components returns the number of float components of the kind, 0 for
// buffers whose length is only known per value.
func (k Kind) Components() int {
	switch k {
	case KindScalar:
		return 1
	case KindVec2:
		return 2
	case KindVec3:
		return 3
	case KindVec4, KindColor:
		return 4
	}
	return 0
}

// Value is a tagged animated value. Scalars, vectors and colors live in a
// four component vector with unused components left at zero; buffers hold
// float32 elements as uploaded to vertex buffers.
//
// Values handed out by tracks and constants never share buffer storage
// with them, so writing to the slice returned by Buffer is local to that
// value.
type Value struct {
	kind Kind
	vec  mgl64.Vec4
	buf  []float32
}

func Float(f float64) Value {
	return Value{kind: KindScalar, vec: mgl64.Vec4{f}}
}

func Vec2(v mgl64.Vec2) Value {
	return Value{kind: KindVec2, vec: v.Vec4(0, 0)}
}

func Vec3(v mgl64.Vec3) Value {
	return Value{kind: KindVec3, vec: v.Vec4(0)}
}

func Vec4(v mgl64.Vec4) Value {
	return Value{kind: KindVec4, vec: v}
}

// Color returns an RGBA color value
func Color(r, g, b, a float64) Value {
	return Value{kind: KindColor, vec: mgl64.Vec4{r, g, b, a}}
}

// Buffer returns a buffer value holding a copy of data
func Buffer(data []float32) Value {
	buf := make([]float32, len(data))
	copy(buf, data)
	return Value{kind: KindBuffer, buf: buf}
}

// clone returns v with its own copy of the buffer
func (v Value) clone() Value {
	if v.buf != nil {
		buf := make([]float32, len(v.buf))
		copy(buf, v.buf)
		v.buf = buf
	}
	return v
}

// Zero returns the zero value of kind. n is the element count for buffers
// and is ignored otherwise.
func Zero(kind Kind, n int) Value {
	if kind == KindBuffer {
		return Value{kind: KindBuffer, buf: make([]float32, n)}
	}
	return Value{kind: kind}
}

// FromComponents builds a value of kind from a flat component list. Colors
// accept three components, alpha then defaults to 1.
func FromComponents(kind Kind, comps []float64) (Value, error) {
	if kind == KindBuffer {
		buf := make([]float32, len(comps))
		for i, c := range comps {
			buf[i] = float32(c)
		}
		return Value{kind: KindBuffer, buf: buf}, nil
	}

	want := kind.Components()
	if want == 0 {
		return Value{}, fmt.Errorf("unknown value kind %d", kind)
	}
	if kind == KindColor && len(comps) == 3 {
		comps = append(comps[:3:3], 1)
	}
	if len(comps) != want {
		return Value{}, fmt.Errorf("%s expects %d components, got %d", kind, want, len(comps))
	}
	v := Value{kind: kind}
	copy(v.vec[:], comps)
	return v, nil
}

func (v Value) Kind() Kind {
	return v.kind
}

// Len returns the number of components, or elements for buffers
func (v Value) Len() int {
	if v.kind == KindBuffer {
		return len(v.buf)
	}
	return v.kind.Components()
}

func (v Value) Float() float64 {
	return v.vec[0]
}

func (v Value) Vec2() mgl64.Vec2 {
	return v.vec.Vec2()
}

func (v Value) Vec3() mgl64.Vec3 {
	return v.vec.Vec3()
}

func (v Value) Vec4() mgl64.Vec4 {
	return v.vec
}

// Color returns the RGBA components
func (v Value) Color() mgl64.Vec4 {
	return v.vec
}

// Buffer returns the buffer elements; nil for non-buffer values
func (v Value) Buffer() []float32 {
	return v.buf
}

// Components returns the value as float64 components
func (v Value) Components() []float64 {
	if v.kind == KindBuffer {
		out := make([]float64, len(v.buf))
		for i, f := range v.buf {
			out[i] = float64(f)
		}
		return out
	}
	out := make([]float64, v.kind.Components())
	copy(out, v.vec[:])
	return out
}

// Float32s returns the value laid out as a uniform or vertex upload expects
func (v Value) Float32s() []float32 {
	if v.kind == KindBuffer {
		out := make([]float32, len(v.buf))
		copy(out, v.buf)
		return out
	}
	n := v.kind.Components()
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(v.vec[i])
	}
	return out
}

// Length is the euclidean norm of the value's components
func (v Value) Length() float64 {
	if v.kind == KindBuffer {
		var sum float64
		for _, f := range v.buf {
			sum += float64(f) * float64(f)
		}
		return math.Sqrt(sum)
	}
	return v.vec.Len()
}

// Equal reports whether both values have the same kind and identical
// components.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind != KindBuffer {
		return v.vec == o.vec
	}
	if len(v.buf) != len(o.buf) {
		return false
	}
	for i := range v.buf {
		if v.buf[i] != o.buf[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return fmt.Sprintf("%g", v.vec[0])
	case KindBuffer:
		return fmt.Sprintf("buffer[%d]", len(v.buf))
	}
	return fmt.Sprintf("%s%v", v.kind, v.Components())
}

// mix returns a + p*(b-a). Buffers must have the same element count.
func mix(a, b Value, p float64) (Value, error) {
	if a.kind != KindBuffer {
		return Value{kind: a.kind, vec: a.vec.Add(b.vec.Sub(a.vec).Mul(p))}, nil
	}
	if len(a.buf) != len(b.buf) {
		return Value{}, fmt.Errorf("%w: %d != %d elements", ErrShapeMismatch, len(a.buf), len(b.buf))
	}
	out := make([]float32, len(a.buf))
	for i := range a.buf {
		x, y := float64(a.buf[i]), float64(b.buf[i])
		out[i] = float32(x + p*(y-x))
	}
	return Value{kind: KindBuffer, buf: out}, nil
}

// slope returns s*(b-a) with the same shape rules as mix.
func slope(a, b Value, s float64) (Value, error) {
	if a.kind != KindBuffer {
		return Value{kind: a.kind, vec: b.vec.Sub(a.vec).Mul(s)}, nil
	}
	if len(a.buf) != len(b.buf) {
		return Value{}, fmt.Errorf("%w: %d != %d elements", ErrShapeMismatch, len(a.buf), len(b.buf))
	}
	out := make([]float32, len(a.buf))
	for i := range a.buf {
		out[i] = float32(s * (float64(b.buf[i]) - float64(a.buf[i])))
	}
	return Value{kind: KindBuffer, buf: out}, nil
}
