package scene

import (
	"fmt"
	"sort"

	"github.com/ivlev/scene2video/internal/anim"
)

// Stage is the pipeline stage a uniform is read from
type Stage uint8

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	if s == StageVertex {
		return "vertex"
	}
	return "fragment"
}

// Slot is one named uniform of a program and the value kinds it accepts
type Slot struct {
	Name  string
	Stage Stage
	Kinds []anim.Kind
}

func (s Slot) accepts(k anim.Kind) bool {
	for _, want := range s.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Program is a built-in shading routine of the preview renderer with a
// fixed uniform signature.
type Program struct {
	Name     string
	Slots    []Slot
	Textured bool
}

// Slot returns the slot called name
func (p *Program) Slot(name string) (Slot, bool) {
	for _, s := range p.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

var vectors = []anim.Kind{anim.KindScalar, anim.KindVec2, anim.KindVec3, anim.KindVec4}

var (
	// ColorProgram fills geometry with color * opacity
	ColorProgram = &Program{
		Name: "color",
		Slots: []Slot{
			{Name: "color", Stage: StageFragment, Kinds: []anim.Kind{anim.KindColor}},
			{Name: "opacity", Stage: StageFragment, Kinds: []anim.Kind{anim.KindScalar}},
		},
	}

	// VelocityProgram maps the magnitude of a velocity to an orange ramp:
	// v = clamp(|velocity| / scale, 0, 1), out = (v, v/2, 0, 1).
	VelocityProgram = &Program{
		Name: "velocity",
		Slots: []Slot{
			{Name: "velocity", Stage: StageFragment, Kinds: vectors},
			{Name: "scale", Stage: StageFragment, Kinds: []anim.Kind{anim.KindScalar}},
		},
	}

	// DistortProgram squashes vertices facing away from the direction of
	// motion, then fills like ColorProgram.
	DistortProgram = &Program{
		Name: "distort",
		Slots: []Slot{
			{Name: "velocity", Stage: StageVertex, Kinds: []anim.Kind{anim.KindVec2, anim.KindVec3}},
			{Name: "distort_max", Stage: StageVertex, Kinds: []anim.Kind{anim.KindScalar}},
			{Name: "color", Stage: StageFragment, Kinds: []anim.Kind{anim.KindColor}},
			{Name: "opacity", Stage: StageFragment, Kinds: []anim.Kind{anim.KindScalar}},
		},
	}

	// TextureProgram maps the draw texture onto a quad
	TextureProgram = &Program{
		Name: "texture",
		Slots: []Slot{
			{Name: "opacity", Stage: StageFragment, Kinds: []anim.Kind{anim.KindScalar}},
		},
		Textured: true,
	}
)

var programs = map[string]*Program{
	ColorProgram.Name:    ColorProgram,
	VelocityProgram.Name: VelocityProgram,
	DistortProgram.Name:  DistortProgram,
	TextureProgram.Name:  TextureProgram,
}

// LookupProgram returns the built-in program called name
func LookupProgram(name string) (*Program, error) {
	p, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("unknown program %q (available: %v)", name, ProgramNames())
	}
	return p, nil
}

func ProgramNames() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bind checks uniforms against the program signature. Constant colors given
// as vec3 or vec4 are converted to color values.
func bind(p *Program, uniforms map[string]anim.Source) (map[string]anim.Source, error) {
	bound := make(map[string]anim.Source, len(p.Slots))
	for name, src := range uniforms {
		slot, ok := p.Slot(name)
		if !ok {
			return nil, fmt.Errorf("%w: program %s has no uniform %q", ErrBinding, p.Name, name)
		}
		if src == nil {
			return nil, fmt.Errorf("%w: uniform %q is nil", ErrBinding, name)
		}
		src = coerceColor(slot, src)
		if !slot.accepts(src.Kind()) {
			return nil, fmt.Errorf("%w: uniform %q of program %s accepts %v, got %s",
				ErrBinding, name, p.Name, slot.Kinds, src.Kind())
		}
		bound[name] = src
	}
	for _, slot := range p.Slots {
		if _, ok := bound[slot.Name]; !ok {
			return nil, fmt.Errorf("%w: uniform %q of program %s is not bound", ErrBinding, slot.Name, p.Name)
		}
	}
	return bound, nil
}

func coerceColor(slot Slot, src anim.Source) anim.Source {
	c, ok := src.(anim.Constant)
	if !ok || !slot.accepts(anim.KindColor) {
		return src
	}
	switch c.Value.Kind() {
	case anim.KindVec3:
		v := c.Value.Vec3()
		return anim.Constant{Value: anim.Color(v[0], v[1], v[2], 1)}
	case anim.KindVec4:
		v := c.Value.Vec4()
		return anim.Constant{Value: anim.Color(v[0], v[1], v[2], v[3])}
	}
	return src
}
