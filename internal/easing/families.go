package easing

import (
	"fmt"
	"math"
)

// family describes the base "in" curve shared by the four variants of an
// easing. deriv is nil when no closed form is provided.
type family struct {
	name     string
	defaults []float64
	required int
	check    func(args []float64) error
	eval     func(t float64, args []float64) float64
	deriv    func(t float64, args []float64) float64
}

var linearFamily = family{
	name:  "linear",
	eval:  func(t float64, _ []float64) float64 { return t },
	deriv: func(float64, []float64) float64 { return 1 },
}

var stepStartFamily = family{
	name: "step_start",
	eval: func(t float64, _ []float64) float64 {
		if t > 0 {
			return 1
		}
		return 0
	},
	deriv: func(float64, []float64) float64 { return 0 },
}

var stepEndFamily = family{
	name: "step_end",
	eval: func(t float64, _ []float64) float64 {
		if t >= 1 {
			return 1
		}
		return 0
	},
	deriv: func(float64, []float64) float64 { return 0 },
}

var quadraticFamily = family{
	name:  "quadratic",
	eval:  func(t float64, _ []float64) float64 { return t * t },
	deriv: func(t float64, _ []float64) float64 { return 2 * t },
}

var cubicFamily = family{
	name:  "cubic",
	eval:  func(t float64, _ []float64) float64 { return t * t * t },
	deriv: func(t float64, _ []float64) float64 { return 3 * t * t },
}

var quarticFamily = family{
	name:  "quartic",
	eval:  func(t float64, _ []float64) float64 { return t * t * t * t },
	deriv: func(t float64, _ []float64) float64 { return 4 * t * t * t },
}

var quinticFamily = family{
	name:  "quintic",
	eval:  func(t float64, _ []float64) float64 { return t * t * t * t * t },
	deriv: func(t float64, _ []float64) float64 { return 5 * t * t * t * t },
}

var powerFamily = family{
	name:     "power",
	defaults: []float64{1},
	check: func(args []float64) error {
		if args[0] <= 0 {
			return fmt.Errorf("power exponent must be positive, got %g", args[0])
		}
		return nil
	},
	eval: func(t float64, args []float64) float64 { return math.Pow(t, args[0]) },
	deriv: func(t float64, args []float64) float64 {
		e := args[0]
		return e * math.Pow(t, e-1)
	},
}

var sinusFamily = family{
	name:  "sinus",
	eval:  func(t float64, _ []float64) float64 { return 1 - math.Cos(t*math.Pi/2) },
	deriv: func(t float64, _ []float64) float64 { return math.Pi / 2 * math.Sin(t*math.Pi/2) },
}

var expFamily = family{
	name:     "exp",
	defaults: []float64{1024},
	check: func(args []float64) error {
		if args[0] <= 0 || args[0] == 1 {
			return fmt.Errorf("exp base must be positive and different from 1, got %g", args[0])
		}
		return nil
	},
	eval: func(t float64, args []float64) float64 {
		a := args[0]
		return (math.Pow(a, t) - 1) / (a - 1)
	},
	deriv: func(t float64, args []float64) float64 {
		a := args[0]
		return math.Log(a) * math.Pow(a, t) / (a - 1)
	},
}

var circularFamily = family{
	name:  "circular",
	eval:  func(t float64, _ []float64) float64 { return 1 - math.Sqrt(1-t*t) },
	deriv: func(t float64, _ []float64) float64 { return t / math.Sqrt(1-t*t) },
}

const (
	bounceN = 7.5625
	bounceD = 2.75
)

func bounceOut(t float64) float64 {
	switch {
	case t < 1/bounceD:
		return bounceN * t * t
	case t < 2/bounceD:
		t -= 1.5 / bounceD
		return bounceN*t*t + 0.75
	case t < 2.5/bounceD:
		t -= 2.25 / bounceD
		return bounceN*t*t + 0.9375
	}
	t -= 2.625 / bounceD
	return bounceN*t*t + 0.984375
}

func bounceOutDerivative(t float64) float64 {
	switch {
	case t < 1/bounceD:
		return 2 * bounceN * t
	case t < 2/bounceD:
		return 2 * bounceN * (t - 1.5/bounceD)
	case t < 2.5/bounceD:
		return 2 * bounceN * (t - 2.25/bounceD)
	}
	return 2 * bounceN * (t - 2.625/bounceD)
}

var bounceFamily = family{
	name:  "bounce",
	eval:  func(t float64, _ []float64) float64 { return 1 - bounceOut(1-t) },
	deriv: func(t float64, _ []float64) float64 { return bounceOutDerivative(1 - t) },
}

// elastic has no closed form derivative here; the numerical fallback covers it.
var elasticFamily = family{
	name:     "elastic",
	defaults: []float64{1, 0.3},
	check: func(args []float64) error {
		if args[1] <= 0 {
			return fmt.Errorf("elastic period must be positive, got %g", args[1])
		}
		return nil
	},
	eval: func(t float64, args []float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}
		a, p := args[0], args[1]
		var s float64
		if a < 1 {
			a = 1
			s = p / 4
		} else {
			s = p / (2 * math.Pi) * math.Asin(1/a)
		}
		t--
		return -(a * math.Pow(2, 10*t) * math.Sin((t-s)*2*math.Pi/p))
	},
}

var backFamily = family{
	name:     "back",
	defaults: []float64{1.70158},
	eval: func(t float64, args []float64) float64 {
		s := args[0]
		return t * t * ((s+1)*t - s)
	},
	deriv: func(t float64, args []float64) float64 {
		s := args[0]
		return 3*(s+1)*t*t - 2*s*t
	},
}

var bezierFamily = family{
	name:     "cubic_bezier",
	defaults: []float64{0, 0, 1, 1},
	required: 4,
	check: func(args []float64) error {
		if args[0] < 0 || args[0] > 1 || args[2] < 0 || args[2] > 1 {
			return fmt.Errorf("cubic_bezier x control points must be within [0,1], got %g and %g", args[0], args[2])
		}
		return nil
	},
	eval: func(t float64, args []float64) float64 {
		s := bezierSolve(t, args[0], args[2])
		return bezierAt(s, args[1], args[3])
	},
	deriv: func(t float64, args []float64) float64 {
		s := bezierSolve(t, args[0], args[2])
		return bezierSlope(s, args[1], args[3]) / bezierSlope(s, args[0], args[2])
	},
}

// bezierAt evaluates one coordinate of a cubic bezier anchored at 0 and 1.
func bezierAt(s, p1, p2 float64) float64 {
	r := 1 - s
	return 3*r*r*s*p1 + 3*r*s*s*p2 + s*s*s
}

func bezierSlope(s, p1, p2 float64) float64 {
	r := 1 - s
	return 3*r*r*p1 + 6*r*s*(p2-p1) + 3*s*s*(1-p2)
}

// bezierSolve finds the curve parameter whose x coordinate is x. Newton
// iterations first, bisection when the slope vanishes.
func bezierSolve(x, x1, x2 float64) float64 {
	s := x
	for i := 0; i < 8; i++ {
		d := bezierAt(s, x1, x2) - x
		if math.Abs(d) < 1e-12 {
			return s
		}
		slope := bezierSlope(s, x1, x2)
		if math.Abs(slope) < 1e-9 {
			break
		}
		s -= d / slope
		if s < 0 || s > 1 {
			break
		}
	}

	lo, hi := 0.0, 1.0
	s = x
	for i := 0; i < 64; i++ {
		v := bezierAt(s, x1, x2)
		if math.Abs(v-x) < 1e-12 {
			break
		}
		if v < x {
			lo = s
		} else {
			hi = s
		}
		s = (lo + hi) / 2
	}
	return s
}
