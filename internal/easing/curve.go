package easing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
)

// numericStep is the finite difference step used when a curve has no usable
// closed form derivative at the requested progress.
const numericStep = 1e-6

// Curve is an easing kind with its arguments. Start and End restrict the
// curve to a sub-range of [0,1] which is then renormalized; leaving both at
// zero selects the full range.
type Curve struct {
	Kind  Kind
	Args  []float64
	Start float64
	End   float64
}

// Of returns the curve of kind k with the given arguments
func Of(k Kind, args ...float64) Curve {
	return Curve{Kind: k, Args: args}
}

// Validate reports whether the curve can be evaluated
func (c Curve) Validate() error {
	if !c.Kind.valid() {
		return fmt.Errorf("invalid easing %d", int(c.Kind))
	}
	fam := kinds[c.Kind].family
	if limit := c.Kind.MaxArgs(); len(c.Args) > limit {
		return fmt.Errorf("%s accepts at most %d arguments, got %d", c.Kind, limit, len(c.Args))
	}
	if len(c.Args) < fam.required {
		return fmt.Errorf("%s requires %d arguments, got %d", c.Kind, fam.required, len(c.Args))
	}
	for _, a := range c.Args {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return fmt.Errorf("%s argument is not finite", c.Kind)
		}
	}
	if fam.check != nil {
		if err := fam.check(c.args()); err != nil {
			return err
		}
	}
	if c.trimmed() {
		if c.Start < 0 || c.End > 1 || c.Start >= c.End {
			return fmt.Errorf("%s offsets must satisfy 0 <= start < end <= 1, got [%g, %g]", c.Kind, c.Start, c.End)
		}
		if c.raw(c.End) == c.raw(c.Start) {
			return fmt.Errorf("%s is flat over [%g, %g]", c.Kind, c.Start, c.End)
		}
	}
	return nil
}

// Eval remaps the normalized progress u
func (c Curve) Eval(u float64) float64 {
	if !c.trimmed() {
		return c.raw(u)
	}
	lo, hi := c.raw(c.Start), c.raw(c.End)
	return (c.raw(c.Start+u*(c.End-c.Start)) - lo) / (hi - lo)
}

// Derivative returns dEval/du at u
func (c Curve) Derivative(u float64) float64 {
	if !c.trimmed() {
		return c.rawDerivative(u)
	}
	lo, hi := c.raw(c.Start), c.raw(c.End)
	span := c.End - c.Start
	return c.rawDerivative(c.Start+u*span) * span / (hi - lo)
}

func (c Curve) String() string {
	s := c.Kind.String()
	if len(c.Args) > 0 {
		s += fmt.Sprint(c.Args)
	}
	if c.trimmed() {
		s += fmt.Sprintf("[%g:%g]", c.Start, c.End)
	}
	return s
}

func (c Curve) trimmed() bool {
	return !(c.Start == 0 && (c.End == 0 || c.End == 1))
}

// args fills the missing trailing arguments with the family defaults.
func (c Curve) args() []float64 {
	fam := kinds[c.Kind].family
	if len(c.Args) == len(fam.defaults) {
		return c.Args
	}
	args := make([]float64, len(fam.defaults))
	copy(args, fam.defaults)
	copy(args, c.Args)
	return args
}

func (c Curve) raw(u float64) float64 {
	info := kinds[c.Kind]
	args := c.args()
	return apply(info.variant, func(t float64) float64 { return info.family.eval(t, args) }, u)
}

func (c Curve) rawDerivative(u float64) float64 {
	info := kinds[c.Kind]
	if info.family.deriv != nil {
		args := c.args()
		d := applyDerivative(info.variant, func(t float64) float64 { return info.family.deriv(t, args) }, u)
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			return d
		}
	}
	return c.numericDerivative(u)
}

// numericDerivative differentiates the raw curve with a central stencil,
// switching to one-sided stencils so that samples stay inside [0,1].
func (c Curve) numericDerivative(u float64) float64 {
	formula := fd.Central
	switch {
	case u-numericStep < 0:
		formula = fd.Forward
	case u+numericStep > 1:
		formula = fd.Backward
	}
	return fd.Derivative(c.raw, u, &fd.Settings{
		Formula: formula,
		Step:    numericStep,
	})
}
