package anim

// Source yields a value of a fixed kind for any time. Tracks, velocity
// nodes and constants are sources.
type Source interface {
	Kind() Kind
	Evaluate(at float64) (Value, error)
}

// Constant is a source that ignores time
type Constant struct {
	Value Value
}

func (c Constant) Kind() Kind {
	return c.Value.Kind()
}

func (c Constant) Evaluate(float64) (Value, error) {
	return c.Value.clone(), nil
}

var (
	_ Source = (*Track)(nil)
	_ Source = (*VelocityNode)(nil)
	_ Source = Constant{}
)
