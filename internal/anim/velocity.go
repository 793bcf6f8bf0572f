package anim

// VelocityNode derives the instantaneous rate of change of a track. The
// track is shared: other consumers may sample it directly.
type VelocityNode struct {
	track *Track
}

func NewVelocity(track *Track) *VelocityNode {
	return &VelocityNode{track: track}
}

func (n *VelocityNode) Track() *Track {
	return n.track
}

// Kind is always the kind of the wrapped track
func (n *VelocityNode) Kind() Kind {
	return n.track.Kind()
}

// Evaluate returns d(value)/dt at time at, in value units per time unit.
//
// The derivative is taken analytically on the active segment:
// easing'(u) / Δt * (next - current). Before the first keyframe and from the
// last keyframe on, the track is clamped and the velocity is zero. A track
// with a single keyframe never moves.
func (n *VelocityNode) Evaluate(at float64) (Value, error) {
	t := n.track
	t.mu.RLock()
	defer t.mu.RUnlock()

	kfs := t.keyframes
	last := len(kfs) - 1
	if last == 0 || !(at >= kfs[0].Time) || at >= kfs[last].Time {
		return Zero(t.kind, kfs[0].Value.Len()), nil
	}

	i := segment(kfs, at)
	a, b := kfs[i], kfs[i+1]
	dt := b.Time - a.Time
	u := (at - a.Time) / dt
	return slope(a.Value, b.Value, a.Easing.Derivative(u)/dt)
}
