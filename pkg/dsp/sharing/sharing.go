// Package sharing implements the weight/mode stage (C5), the Dugan
// gain-sharing core (C6), and the NOM (number-of-open-microphones)
// attenuator (C7).
package sharing

import (
	"math"

	"github.com/go-automix/automix/pkg/dsp"
)

// ChannelMode holds the per-channel override flags evaluated in C5. The
// override order is fixed: solo, then mute, then bypass.
type ChannelMode struct {
	Weight   float64 // [0,1]
	Muted    bool
	Soloed   bool
	Bypassed bool
}

// Contribution computes a channel's weighted contribution to the
// gain-sharing sum given its envelope, mode, whether the channel is
// currently active per the activity gate (C4), and whether any channel in
// the engine is currently soloed. An inactive channel contributes zero —
// matching original_source's compute_dugan_gains, which only sums
// participating[i] && is_active[i] channels — as does a bypassed channel
// (excluded from the sum, its gain forced to unity by the caller) or a
// muted or soloed-out channel.
func Contribution(env float64, mode ChannelMode, active, anySoloActive bool) float64 {
	if !active {
		return 0
	}
	if anySoloActive && !mode.Soloed {
		return 0
	}
	if mode.Muted {
		return 0
	}
	if mode.Bypassed {
		return 0
	}
	return env * mode.Weight
}

// IsParticipating reports whether a channel takes part in gain-sharing at
// all (used to decide NOM/activity counting) — true unless muted,
// soloed-out, or bypassed.
func IsParticipating(mode ChannelMode, anySoloActive bool) bool {
	if mode.Bypassed || mode.Muted {
		return false
	}
	if anySoloActive && !mode.Soloed {
		return false
	}
	return true
}

// SumEpsilon guards the gain-sharing denominator against division by zero
// when every channel's contribution is zero (e.g. total silence). Reuses
// the package-wide small-value constant rather than inventing a new one.
const SumEpsilon = dsp.Epsilon

// DuganGains computes the normalized gain-sharing weights for a block of
// per-channel contributions: gain[c] = contribution[c] / sum(contributions).
//
// If every contribution has collapsed to ~0 (no participating channel is
// currently active), it falls back to granting heldChannel unity gain,
// provided heldValid is true and that channel is still participating —
// matching original_source/rust/.../gain_sharing.rs's silence-fallback
// branch, the mechanism that gives the last-mic-hold state machine
// (pkg/dsp/activity) an actual effect on the mixed output. Pass
// heldValid=false (or a heldChannel outside range) to disable the
// fallback. The result is written into out, which must have the same
// length as contributions and participating.
func DuganGains(contributions []float64, participating []bool, heldChannel int, heldValid bool, out []float64) {
	sum := 0.0
	for _, c := range contributions {
		sum += c
	}
	if sum > SumEpsilon {
		for i, c := range contributions {
			out[i] = c / sum
		}
		return
	}
	for i := range out {
		out[i] = 0
	}
	if heldValid && heldChannel >= 0 && heldChannel < len(out) && participating[heldChannel] {
		out[heldChannel] = 1.0
	}
}

// NomAttenuator smooths the count of simultaneously active channels and
// derives the attenuation to apply to every raw gain so that opening more
// microphones does not raise the total acoustic gain of the mix.
type NomAttenuator struct {
	coeff   float64
	count   float64
	enabled bool
}

// NewNomAttenuator creates an attenuator with the given smoothing
// coefficient (see onepole.CoeffFromTime) for the active-channel count.
func NewNomAttenuator(coeff float64) *NomAttenuator {
	return &NomAttenuator{coeff: coeff, enabled: true}
}

// SetCoeff updates the smoothing coefficient.
func (n *NomAttenuator) SetCoeff(coeff float64) {
	n.coeff = coeff
}

// SetEnabled turns NOM attenuation on or off. When disabled, Attenuation
// always returns 1.0 (unity, no attenuation) but the smoothed count still
// advances so re-enabling does not produce a discontinuity.
func (n *NomAttenuator) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Enabled reports whether NOM attenuation is currently applied.
func (n *NomAttenuator) Enabled() bool {
	return n.enabled
}

// Update advances the smoothed active-channel count given this sample's
// raw (unsmoothed) count of participating-and-active channels, and returns
// the updated smoothed count.
func (n *NomAttenuator) Update(activeCount int) float64 {
	n.count += n.coeff * (float64(activeCount) - n.count)
	if n.count < 0 {
		n.count = 0
	}
	return n.count
}

// Count returns the current smoothed active-channel count.
func (n *NomAttenuator) Count() float64 {
	return n.count
}

// Attenuation returns the linear attenuation factor to apply to every raw
// gain this sample: 1/max(1, count) when enabled, or 1.0 when disabled.
func (n *NomAttenuator) Attenuation() float64 {
	if !n.enabled {
		return 1.0
	}
	denom := n.count
	if denom < 1.0 {
		denom = 1.0
	}
	return 1.0 / denom
}

// AttenuationDb returns the NOM attenuation expressed in dB:
// -20*log10(max(1,count)), the amplitude-domain convention spec.md
// prescribes (not the -10*log10 power-domain convention some references
// use).
func (n *NomAttenuator) AttenuationDb() float64 {
	denom := n.count
	if denom < 1.0 {
		denom = 1.0
	}
	return -20.0 * math.Log10(denom)
}

// Reset clears the smoothed count back to zero.
func (n *NomAttenuator) Reset() {
	n.count = 0
}
