// Package envelope provides the per-channel envelope/RMS detector (C2 in
// the mixing pipeline): a peak follower for activity detection and a
// parallel RMS follower for metering, both single-coefficient one-poles.
package envelope

import (
	"math"

	"github.com/go-automix/automix/pkg/dsp/onepole"
)

// Detector tracks a channel's instantaneous peak envelope and a short-term
// RMS, both via single-coefficient one-pole followers on the same time
// constant.
type Detector struct {
	coeff    float64
	env      float64 // peak-style envelope, linear, >= 0
	envRmsSq float64 // mean-squared envelope, linear, >= 0
}

// NewDetector creates a detector with the given envelope time constant
// (seconds) and sample rate.
func NewDetector(timeSec, sampleRate float64) *Detector {
	return &Detector{coeff: onepole.CoeffFromTime(timeSec, sampleRate)}
}

// SetTimeConstant recomputes the coefficient from a new time constant.
func (d *Detector) SetTimeConstant(timeSec, sampleRate float64) {
	d.coeff = onepole.CoeffFromTime(timeSec, sampleRate)
}

// Process advances the detector by one sample and returns the updated
// peak envelope. The input is assumed already sanitised to a finite value
// by the caller.
func (d *Detector) Process(x float32) float64 {
	absX := math.Abs(float64(x))
	d.env += d.coeff * (absX - d.env)
	if d.env < 0 {
		d.env = 0
	}

	sq := float64(x) * float64(x)
	d.envRmsSq += d.coeff * (sq - d.envRmsSq)
	if d.envRmsSq < 0 {
		d.envRmsSq = 0
	}

	return d.env
}

// Env returns the current peak envelope (linear).
func (d *Detector) Env() float64 {
	return d.env
}

// RMS returns the current short-term RMS (linear), derived from the
// mean-squared one-pole state.
func (d *Detector) RMS() float64 {
	return math.Sqrt(d.envRmsSq)
}

// Reset clears both followers to silence.
func (d *Detector) Reset() {
	d.env = 0
	d.envRmsSq = 0
}
