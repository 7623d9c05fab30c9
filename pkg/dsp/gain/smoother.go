package gain

import (
	"math"

	"github.com/go-automix/automix/pkg/dsp/onepole"
)

// Smoother applies asymmetric attack/release ballistics to a target gain
// value in the linear domain (C8): the smoothed gain chases the raw
// gain-sharing result with a fast attack (turning up) and a slower release
// (turning down), matching how a human operator rides a fader rather than
// snapping to the mathematically correct gain every sample.
type Smoother struct {
	follower *onepole.AsymFollower
}

// NewSmoother creates a smoother with the given attack/release time
// constants (seconds) at sampleRate, starting at unity gain.
func NewSmoother(attackSec, releaseSec, sampleRate float64) *Smoother {
	s := &Smoother{follower: onepole.NewAsymFollower(attackSec, releaseSec, sampleRate)}
	s.follower.Reset(1.0)
	return s
}

// SetTimeConstants recomputes the attack/release coefficients.
func (s *Smoother) SetTimeConstants(attackSec, releaseSec, sampleRate float64) {
	s.follower.SetCoeffs(attackSec, releaseSec, sampleRate)
}

// Process advances the smoothed gain one sample toward target and returns
// the updated value.
func (s *Smoother) Process(target float64) float64 {
	return s.follower.Process(target)
}

// Value returns the current smoothed gain without advancing.
func (s *Smoother) Value() float64 {
	return s.follower.Value()
}

// Reset snaps the smoothed gain immediately to value, with no ballistics.
func (s *Smoother) Reset(value float64) {
	s.follower.Reset(value)
}

// ApplySanitized multiplies sample by gain and replaces the result with
// fallback if it is not finite (NaN or Inf), guarding against a
// pathological host-supplied sample or an unstable intermediate value
// propagating downstream.
func ApplySanitized(sample, gain, fallback float32) float32 {
	out := sample * gain
	return FiniteOr(out, fallback)
}

// FiniteOr returns x if it is finite, or fallback otherwise.
func FiniteOr(x, fallback float32) float32 {
	if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
		return fallback
	}
	return x
}
