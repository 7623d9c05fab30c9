// Package noisefloor implements the per-channel noise-floor tracker (C3):
// an asymmetric one-pole follower that rises slowly toward the envelope and
// falls quickly when the envelope dips below it, plus the activity test
// (C4's "hot" predicate) derived from the tracked floor.
package noisefloor

import (
	"math"

	"github.com/go-automix/automix/pkg/dsp/onepole"
)

// FloorEpsilon is the minimum floor value, chosen so -120 dB is
// representable (20*log10(1e-6) = -120).
const FloorEpsilon = 1e-6

// Tracker follows a channel's resting (noise) level.
type Tracker struct {
	fallCoeff float64 // used when env < floor (track down quickly)
	riseCoeff float64 // used when env >= floor (track up slowly)
	floor     float64
	thetaOn   float64 // activity threshold multiplier, e.g. 4.0 == +12dB
	thetaOff  float64 // hysteresis threshold below thetaOn, e.g. 2.0 == +6dB
}

// NewTracker creates a tracker with the given fall/rise time constants
// (seconds) and on/off activity thresholds (linear multiples of the floor).
func NewTracker(fallSec, riseSec, sampleRate, thetaOn, thetaOff float64) *Tracker {
	return &Tracker{
		fallCoeff: onepole.CoeffFromTime(fallSec, sampleRate),
		riseCoeff: onepole.CoeffFromTime(riseSec, sampleRate),
		floor:     FloorEpsilon,
		thetaOn:   thetaOn,
		thetaOff:  thetaOff,
	}
}

// SetTimeConstants recomputes the fall/rise coefficients.
func (t *Tracker) SetTimeConstants(fallSec, riseSec, sampleRate float64) {
	t.fallCoeff = onepole.CoeffFromTime(fallSec, sampleRate)
	t.riseCoeff = onepole.CoeffFromTime(riseSec, sampleRate)
}

// Process advances the floor estimate by one sample given the current
// envelope value, and returns the updated floor.
func (t *Tracker) Process(env float64) float64 {
	coeff := t.riseCoeff
	if env < t.floor {
		coeff = t.fallCoeff
	}
	t.floor += coeff * (env - t.floor)
	if !isFinite(t.floor) || t.floor < FloorEpsilon {
		t.floor = FloorEpsilon
	}
	if t.floor > 1.0 {
		t.floor = 1.0
	}
	return t.floor
}

// Floor returns the current floor estimate without advancing.
func (t *Tracker) Floor() float64 {
	return t.floor
}

// Hot reports whether env is above floor*thetaOn (the activity-on test).
func (t *Tracker) Hot(env float64) bool {
	return env > t.floor*t.thetaOn
}

// Cold reports whether env has fallen to or below floor*thetaOff (the
// hysteresis-off test, used by the activity gate's Hot->Holding edge).
func (t *Tracker) Cold(env float64) bool {
	return env <= t.floor*t.thetaOff
}

// Reset returns the tracker to its initial silent state.
func (t *Tracker) Reset() {
	t.floor = FloorEpsilon
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
