// Package activity implements the per-channel activity gate (C4): the
// Idle/Hot/Holding state machine derived from envelope vs. noise-floor
// comparisons, plus the engine-wide last-mic hold that keeps the most
// recently hot channel open for a configured duration after all channels
// fall silent.
package activity

// State is a channel's activity-gate state.
type State int

const (
	Idle State = iota
	Hot
	Holding
)

// Gate tracks one channel's Idle/Hot/Holding state and hold countdown.
type Gate struct {
	state       State
	holdSamples int64
}

// IsActive reports whether the channel should be treated as active
// (contributing to gain-sharing and NOM), which is true while Hot or
// Holding.
func (g *Gate) IsActive() bool {
	return g.state == Hot || g.state == Holding
}

// State returns the gate's current state.
func (g *Gate) State() State {
	return g.state
}

// HoldSamples returns the remaining hold countdown.
func (g *Gate) HoldSamples() int64 {
	return g.holdSamples
}

// Advance evaluates one sample's hot/cold tests against the current state.
// hot and cold are the thetaOn/thetaOff tests from noisefloor.Tracker.
// wasLastHot indicates whether this channel may take the last-mic hold
// (only relevant to the Hot->Holding transition); the engine passes true
// only for the most recently hot channel and only while no participating
// channel is hot.
// holdDuration is the hold length in samples (set when transitioning into
// Holding); it is re-read from the caller each sample so changes to
// hold_ms take effect without resetting an in-progress hold.
func (g *Gate) Advance(hot, cold, wasLastHot bool, holdDuration int64) {
	switch g.state {
	case Idle:
		if hot {
			g.state = Hot
		}
	case Hot:
		if cold && wasLastHot {
			g.state = Holding
			g.holdSamples = holdDuration
		} else if cold {
			g.state = Idle
		}
	case Holding:
		if hot {
			g.state = Hot
		} else {
			g.holdSamples--
			if g.holdSamples <= 0 {
				g.holdSamples = 0
				g.state = Idle
			}
		}
	}
}

// Release forces the gate out of Holding immediately — used when the held
// channel loses participation (muted, soloed-out, or bypassed) while held.
func (g *Gate) Release() {
	if g.state == Holding {
		g.state = Idle
		g.holdSamples = 0
	}
}

// Reset returns the gate to Idle with no pending hold.
func (g *Gate) Reset() {
	g.state = Idle
	g.holdSamples = 0
}

// LastHot tracks the single engine-wide slot recording which channel was
// most recently hot, used to decide which channel (if any) enters Holding
// when it falls cold. Only one channel may occupy the slot at a time: when
// several channels are hot simultaneously, the lowest index wins the tie.
type LastHot struct {
	channel int
	valid   bool
}

// Update scans which channels are both hot and participating this sample
// and records the lowest-indexed one as the new last-hot channel. A
// muted, soloed-out, or bypassed channel is never recorded, even if it is
// loud — matching original_source's last_mic_hold.rs, which scans only
// participating[i] && is_active[i]. If no participating channel is hot,
// the previously recorded channel (if any) is retained unchanged.
func (lh *LastHot) Update(hot, participating []bool) {
	for i, h := range hot {
		if h && participating[i] {
			lh.channel = i
			lh.valid = true
			return
		}
	}
}

// Channel returns the currently recorded last-hot channel index. Callers
// must check HasChannel first; the result is meaningless otherwise.
func (lh *LastHot) Channel() int {
	return lh.channel
}

// HasChannel reports whether any channel has gone hot since the last Reset.
func (lh *LastHot) HasChannel() bool {
	return lh.valid
}

// Release clears the slot if it currently holds ch — used when the held
// channel loses participation (mute/solo-out/bypass) so a different
// channel can take over the hold on the next Update.
func (lh *LastHot) Release(ch int) {
	if lh.valid && lh.channel == ch {
		lh.valid = false
	}
}

// Reset clears the slot entirely.
func (lh *LastHot) Reset() {
	lh.valid = false
}
