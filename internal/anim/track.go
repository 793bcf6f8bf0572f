// Package anim evaluates keyframed tracks and their time derivatives.
package anim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ivlev/scene2video/internal/easing"
)

var (
	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("invalid keyframes")

	// ErrShapeMismatch reports two buffer keyframes of different lengths
	// meeting in one segment.
	ErrShapeMismatch = errors.New("buffer shape mismatch")
)

// ValidationError describes why a keyframe list was rejected. Index is the
// offending keyframe, -1 when the list as a whole is at fault.
type ValidationError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s", ErrValidation, msg)
	}
	return fmt.Sprintf("%v: keyframe %d: %s", ErrValidation, e.Index, msg)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Keyframe anchors a value at a time. Easing shapes the segment that starts
// at this keyframe.
type Keyframe struct {
	Time   float64
	Value  Value
	Easing easing.Curve
}

// KF is shorthand for a keyframe with an easing and its arguments
func KF(time float64, v Value, kind easing.Kind, args ...float64) Keyframe {
	return Keyframe{Time: time, Value: v, Easing: easing.Of(kind, args...)}
}

func (k Keyframe) clone() Keyframe {
	k.Value = k.Value.clone()
	if len(k.Easing.Args) > 0 {
		args := make([]float64, len(k.Easing.Args))
		copy(args, k.Easing.Args)
		k.Easing.Args = args
	}
	return k
}

// Track is an ordered list of keyframes of one value kind. Evaluation is
// safe for concurrent use; Append and Replace take an exclusive lock.
type Track struct {
	mu        sync.RWMutex
	kind      Kind
	keyframes []Keyframe
}

// BuildTrack validates keyframes and returns a track owning a copy of them
func BuildTrack(keyframes []Keyframe) (*Track, error) {
	if err := validate(keyframes); err != nil {
		return nil, err
	}
	kfs := make([]Keyframe, len(keyframes))
	for i, kf := range keyframes {
		kfs[i] = kf.clone()
	}
	return &Track{kind: kfs[0].Value.Kind(), keyframes: kfs}, nil
}

func validate(keyframes []Keyframe) error {
	if len(keyframes) == 0 {
		return &ValidationError{Index: -1, Reason: "empty keyframe list"}
	}
	kind, size := keyframes[0].Value.Kind(), keyframes[0].Value.Len()
	for i, kf := range keyframes {
		if err := checkKeyframe(i, kf, kind, size); err != nil {
			return err
		}
		if i > 0 && !(kf.Time > keyframes[i-1].Time) {
			return &ValidationError{
				Index:  i,
				Reason: fmt.Sprintf("time %g does not follow %g", kf.Time, keyframes[i-1].Time),
			}
		}
	}
	return nil
}

// checkKeyframe validates kf against the track kind and, for buffers, the
// element count every keyframe of the track shares.
func checkKeyframe(i int, kf Keyframe, kind Kind, size int) error {
	if math.IsNaN(kf.Time) || math.IsInf(kf.Time, 0) {
		return &ValidationError{Index: i, Reason: "time is not finite"}
	}
	if kf.Value.Kind() != kind {
		return &ValidationError{Index: i, Reason: fmt.Sprintf("value kind %s, track kind %s", kf.Value.Kind(), kind)}
	}
	if kind == KindBuffer && kf.Value.Len() != size {
		return &ValidationError{
			Index:  i,
			Reason: fmt.Sprintf("buffer of %d elements, track has %d", kf.Value.Len(), size),
			Err:    ErrShapeMismatch,
		}
	}
	if err := kf.Easing.Validate(); err != nil {
		return &ValidationError{Index: i, Reason: "easing", Err: err}
	}
	return nil
}

func (t *Track) Kind() Kind {
	return t.kind
}

func (t *Track) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keyframes)
}

// Keyframes returns a copy of the keyframe list in time order
func (t *Track) Keyframes() []Keyframe {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Keyframe, len(t.keyframes))
	for i, kf := range t.keyframes {
		out[i] = kf.clone()
	}
	return out
}

// Span returns the times of the first and last keyframes
func (t *Track) Span() (start, end float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.keyframes[0].Time, t.keyframes[len(t.keyframes)-1].Time
}

// Append adds kf after the last keyframe
func (t *Track) Append(kf Keyframe) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.keyframes)
	if err := checkKeyframe(n, kf, t.kind, t.keyframes[0].Value.Len()); err != nil {
		return err
	}
	if last := t.keyframes[n-1].Time; !(kf.Time > last) {
		return &ValidationError{Index: n, Reason: fmt.Sprintf("time %g does not follow %g", kf.Time, last)}
	}
	t.keyframes = append(t.keyframes, kf.clone())
	return nil
}

// Replace swaps keyframe i for kf, which must keep the list ordered
func (t *Track) Replace(i int, kf Keyframe) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.keyframes) {
		return &ValidationError{Index: i, Reason: fmt.Sprintf("index out of range [0, %d)", len(t.keyframes))}
	}
	if err := checkKeyframe(i, kf, t.kind, t.keyframes[0].Value.Len()); err != nil {
		return err
	}
	if i > 0 && !(kf.Time > t.keyframes[i-1].Time) {
		return &ValidationError{Index: i, Reason: fmt.Sprintf("time %g does not follow %g", kf.Time, t.keyframes[i-1].Time)}
	}
	if i+1 < len(t.keyframes) && !(kf.Time < t.keyframes[i+1].Time) {
		return &ValidationError{Index: i, Reason: fmt.Sprintf("time %g does not precede %g", kf.Time, t.keyframes[i+1].Time)}
	}

	t.keyframes[i] = kf.clone()
	return nil
}

// Evaluate returns the interpolated value at time at. Times outside the
// keyframe span clamp to the first or last value.
func (t *Track) Evaluate(at float64) (Value, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	kfs := t.keyframes
	n := len(kfs)
	if !(at > kfs[0].Time) {
		return kfs[0].Value.clone(), nil
	}
	if at >= kfs[n-1].Time {
		return kfs[n-1].Value.clone(), nil
	}

	i := segment(kfs, at)
	a, b := kfs[i], kfs[i+1]
	u := (at - a.Time) / (b.Time - a.Time)
	return mix(a.Value, b.Value, a.Easing.Eval(u))
}

// segment returns i such that kfs[i].Time <= at < kfs[i+1].Time. at must lie
// strictly inside the keyframe span.
func segment(kfs []Keyframe, at float64) int {
	return sort.Search(len(kfs), func(i int) bool {
		return kfs[i].Time > at
	}) - 1
}
