// Package easing implements the progress remapping curves used between two
// keyframes, together with their derivatives.
package easing

import (
	"fmt"
	"strings"
)

// Kind identifies an easing curve
type Kind int

const (
	Linear Kind = iota
	StepStart
	StepEnd

	QuadraticIn
	QuadraticOut
	QuadraticInOut
	QuadraticOutIn

	CubicIn
	CubicOut
	CubicInOut
	CubicOutIn

	QuarticIn
	QuarticOut
	QuarticInOut
	QuarticOutIn

	QuinticIn
	QuinticOut
	QuinticInOut
	QuinticOutIn

	PowerIn
	PowerOut
	PowerInOut
	PowerOutIn

	SinusIn
	SinusOut
	SinusInOut
	SinusOutIn

	ExpIn
	ExpOut
	ExpInOut
	ExpOutIn

	CircularIn
	CircularOut
	CircularInOut
	CircularOutIn

	BounceIn
	BounceOut
	BounceInOut
	BounceOutIn

	ElasticIn
	ElasticOut
	ElasticInOut
	ElasticOutIn

	BackIn
	BackOut
	BackInOut
	BackOutIn

	CubicBezier

	numKinds
)

type variant uint8

const (
	variantIn variant = iota
	variantOut
	variantInOut
	variantOutIn
)

var variantSuffix = [...]string{"_in", "_out", "_in_out", "_out_in"}

type kindInfo struct {
	name    string
	family  *family
	variant variant
}

var kinds [numKinds]kindInfo

var byName = make(map[string]Kind, numKinds)

func init() {
	kinds[Linear] = kindInfo{name: "linear", family: &linearFamily}
	kinds[StepStart] = kindInfo{name: "step_start", family: &stepStartFamily}
	kinds[StepEnd] = kindInfo{name: "step_end", family: &stepEndFamily}
	kinds[CubicBezier] = kindInfo{name: "cubic_bezier", family: &bezierFamily}

	grouped := []struct {
		first Kind
		fam   *family
	}{
		{QuadraticIn, &quadraticFamily},
		{CubicIn, &cubicFamily},
		{QuarticIn, &quarticFamily},
		{QuinticIn, &quinticFamily},
		{PowerIn, &powerFamily},
		{SinusIn, &sinusFamily},
		{ExpIn, &expFamily},
		{CircularIn, &circularFamily},
		{BounceIn, &bounceFamily},
		{ElasticIn, &elasticFamily},
		{BackIn, &backFamily},
	}
	for _, g := range grouped {
		for v := variantIn; v <= variantOutIn; v++ {
			kinds[g.first+Kind(v)] = kindInfo{
				name:    g.fam.name + variantSuffix[v],
				family:  g.fam,
				variant: v,
			}
		}
	}

	for k := Kind(0); k < numKinds; k++ {
		byName[kinds[k].name] = k
	}
}

// Parse returns the Kind matching name. The empty string maps to Linear.
func Parse(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Linear, nil
	}
	k, ok := byName[name]
	if !ok {
		return Linear, fmt.Errorf("unknown easing %q", name)
	}
	return k, nil
}

// Names lists every easing name in declaration order
func Names() []string {
	names := make([]string, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		names[k] = kinds[k].name
	}
	return names
}

func (k Kind) valid() bool {
	return k >= 0 && k < numKinds
}

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("easing(%d)", int(k))
	}
	return kinds[k].name
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid easing %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MaxArgs returns how many numeric arguments the curve accepts
func (k Kind) MaxArgs() int {
	if !k.valid() {
		return 0
	}
	return len(kinds[k].family.defaults)
}

// apply maps the base "in" curve of a family to the requested variant.
func apply(v variant, f func(float64) float64, t float64) float64 {
	switch v {
	case variantOut:
		return 1 - f(1-t)
	case variantInOut:
		if t < 0.5 {
			return f(2*t) / 2
		}
		return 1 - f(2-2*t)/2
	case variantOutIn:
		if t < 0.5 {
			return (1 - f(1-2*t)) / 2
		}
		return (1 + f(2*t-1)) / 2
	}
	return f(t)
}

// applyDerivative is the chain rule counterpart of apply.
func applyDerivative(v variant, df func(float64) float64, t float64) float64 {
	switch v {
	case variantOut:
		return df(1 - t)
	case variantInOut:
		if t < 0.5 {
			return df(2 * t)
		}
		return df(2 - 2*t)
	case variantOutIn:
		if t < 0.5 {
			return df(1 - 2*t)
		}
		return df(2*t - 1)
	}
	return df(t)
}
