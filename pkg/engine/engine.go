// Package engine implements the mixer orchestrator (O): it owns the
// fixed-capacity array of channels, drives the per-sample pipeline
// (envelope, noise floor, activity, gain-sharing, NOM, smoothing) once per
// block, and publishes lock-free metering snapshots.
package engine

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/go-automix/automix/pkg/dsp/activity"
	"github.com/go-automix/automix/pkg/dsp/envelope"
	"github.com/go-automix/automix/pkg/dsp/gain"
	"github.com/go-automix/automix/pkg/dsp/meter"
	"github.com/go-automix/automix/pkg/dsp/noisefloor"
	"github.com/go-automix/automix/pkg/dsp/onepole"
	"github.com/go-automix/automix/pkg/dsp/sharing"
	"github.com/go-automix/automix/pkg/dsp/utility"
)

// MaxChannels is the largest channel count an engine may be created with.
const MaxChannels = 32

// MaxBlockSize is the largest num_samples a single Process call supports.
const MaxBlockSize = 4096

// Default time constants, matching a typical Dugan-style automixer.
const (
	DefaultEnvelopeTauSec    = 0.005
	DefaultNoiseFloorFallSec = 1.0
	DefaultNoiseFloorRiseSec = 10.0
	DefaultNomTauSec         = 0.1
	DefaultAttackMs          = 5.0
	DefaultReleaseMs         = 150.0
	DefaultHoldMs            = 500.0
	DefaultWeight            = 1.0

	ThetaOn  = 4.0 // +12dB over floor: activity turns on
	ThetaOff = 2.0 // +6dB over floor: hysteresis band before holding/idle
)

// Clamp ranges for parameter setters, per the engine's external contract.
const (
	MinWeight     = 0.0
	MaxWeight     = 1.0
	MinAttackMs   = 0.1
	MaxAttackMs   = 100.0
	MinReleaseMs  = 1.0
	MaxReleaseMs  = 1000.0
	MinHoldMs     = 0.0
	MaxHoldMs     = 5000.0
)

var (
	// ErrChannelCount is returned by New when numChannels is 0 or exceeds MaxChannels.
	ErrChannelCount = errors.New("automix: channel count must be in [1, 32]")
	// ErrSampleRate is returned by New when sampleRate is not positive.
	ErrSampleRate = errors.New("automix: sample rate must be positive")
	// ErrBlockSize is returned by New when maxBlockSize is not positive or exceeds MaxBlockSize.
	ErrBlockSize = errors.New("automix: max block size must be in [1, 4096]")
)

// channel holds one channel's per-sample pipeline state and its
// cross-thread parameter/metering surface.
type channel struct {
	detector   *envelope.Detector
	floor      *noisefloor.Tracker
	gate       activity.Gate
	smoother   *gain.Smoother
	meter      meter.ChannelMeter
	inputAcc   meter.BlockAccumulator
	outputAcc  meter.BlockAccumulator
	noiseFloor float64 // last published floor, for bypass-path metering

	weight   atomic.Uint32 // float32 bits
	muted    atomic.Bool
	soloed   atomic.Bool
	bypassed atomic.Bool
}

func newChannel(sampleRate float64) *channel {
	c := &channel{
		detector: envelope.NewDetector(DefaultEnvelopeTauSec, sampleRate),
		floor:    noisefloor.NewTracker(DefaultNoiseFloorFallSec, DefaultNoiseFloorRiseSec, sampleRate, ThetaOn, ThetaOff),
		smoother: gain.NewSmoother(msToSec(DefaultAttackMs), msToSec(DefaultReleaseMs), sampleRate),
	}
	c.weight.Store(math.Float32bits(DefaultWeight))
	return c
}

func (c *channel) mode() sharing.ChannelMode {
	return sharing.ChannelMode{
		Weight:   float64(math.Float32frombits(c.weight.Load())),
		Muted:    c.muted.Load(),
		Soloed:   c.soloed.Load(),
		Bypassed: c.bypassed.Load(),
	}
}

// Engine is a fixed-size automatic gain-sharing mixer.
type Engine struct {
	numChannels  int
	sampleRate   float64
	maxBlockSize int

	channels []*channel
	lastHot  activity.LastHot
	nom      *sharing.NomAttenuator

	globalMeter meter.GlobalMeter

	// Scratch buffers reused across Process calls, sized to numChannels at
	// construction time, so the hot path never allocates.
	scratchHot           []bool
	scratchCold          []bool
	scratchMode          []sharing.ChannelMode
	scratchEnv           []float64
	scratchContribution  []float64
	scratchRawGain       []float64
	scratchParticipating []bool

	globalBypass    atomic.Bool
	attackMs        atomic.Uint32
	releaseMs       atomic.Uint32
	holdMs          atomic.Uint32
	nomAttenEnabled atomic.Bool

	// cachedAttackMs/releaseMs/holdMs are read/written only from the audio
	// thread inside Process, to detect parameter changes and avoid
	// recomputing coefficients every sample.
	cachedAttackMs  float64
	cachedReleaseMs float64
	cachedHoldMs    float64
}

func msToSec(ms float64) float64 { return ms / 1000.0 }

// New constructs an engine for numChannels channels at sampleRate,
// accepting blocks of up to maxBlockSize samples. It rejects channel
// counts outside [1, MaxChannels], non-positive sample rates, and block
// sizes outside [1, MaxBlockSize].
func New(numChannels int, sampleRate float64, maxBlockSize int) (*Engine, error) {
	if numChannels <= 0 || numChannels > MaxChannels {
		return nil, ErrChannelCount
	}
	if sampleRate <= 0 {
		return nil, ErrSampleRate
	}
	if maxBlockSize <= 0 || maxBlockSize > MaxBlockSize {
		return nil, ErrBlockSize
	}

	e := &Engine{
		numChannels:     numChannels,
		sampleRate:      sampleRate,
		maxBlockSize:    maxBlockSize,
		nom:             sharing.NewNomAttenuator(onepole.CoeffFromTime(DefaultNomTauSec, sampleRate)),
		cachedAttackMs:  DefaultAttackMs,
		cachedReleaseMs: DefaultReleaseMs,
		cachedHoldMs:    DefaultHoldMs,
	}
	e.attackMs.Store(math.Float32bits(DefaultAttackMs))
	e.releaseMs.Store(math.Float32bits(DefaultReleaseMs))
	e.holdMs.Store(math.Float32bits(DefaultHoldMs))
	e.nomAttenEnabled.Store(true)

	e.scratchHot = make([]bool, numChannels)
	e.scratchCold = make([]bool, numChannels)
	e.scratchMode = make([]sharing.ChannelMode, numChannels)
	e.scratchEnv = make([]float64, numChannels)
	e.scratchContribution = make([]float64, numChannels)
	e.scratchRawGain = make([]float64, numChannels)
	e.scratchParticipating = make([]bool, numChannels)

	e.channels = make([]*channel, numChannels)
	for i := range e.channels {
		e.channels[i] = newChannel(sampleRate)
	}
	return e, nil
}

// NumChannels returns the engine's configured channel count.
func (e *Engine) NumChannels() int { return e.numChannels }

// SampleRate returns the engine's configured sample rate.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// ---- Parameter setters (safe from any thread; clamped; silently ignore
// out-of-range channel indices) ----

// SetChannelWeight clamps value to [MinWeight, MaxWeight] and stores it.
func (e *Engine) SetChannelWeight(ch int, value float64) {
	c := e.channelAt(ch)
	if c == nil {
		return
	}
	c.weight.Store(math.Float32bits(float32(utility.ClampParameter(value, MinWeight, MaxWeight))))
}

// SetChannelMute sets a channel's mute flag.
func (e *Engine) SetChannelMute(ch int, muted bool) {
	if c := e.channelAt(ch); c != nil {
		c.muted.Store(muted)
	}
}

// SetChannelSolo sets a channel's solo flag.
func (e *Engine) SetChannelSolo(ch int, soloed bool) {
	if c := e.channelAt(ch); c != nil {
		c.soloed.Store(soloed)
	}
}

// SetChannelBypass sets a channel's bypass flag.
func (e *Engine) SetChannelBypass(ch int, bypassed bool) {
	if c := e.channelAt(ch); c != nil {
		c.bypassed.Store(bypassed)
	}
}

func (e *Engine) channelAt(ch int) *channel {
	if ch < 0 || ch >= e.numChannels {
		return nil
	}
	return e.channels[ch]
}

// SetGlobalBypass enables or disables whole-engine passthrough.
func (e *Engine) SetGlobalBypass(bypass bool) {
	e.globalBypass.Store(bypass)
}

// SetAttackMs clamps and stores the attack time constant in milliseconds.
func (e *Engine) SetAttackMs(ms float64) {
	e.attackMs.Store(math.Float32bits(float32(utility.ClampParameter(ms, MinAttackMs, MaxAttackMs))))
}

// SetReleaseMs clamps and stores the release time constant in milliseconds.
func (e *Engine) SetReleaseMs(ms float64) {
	e.releaseMs.Store(math.Float32bits(float32(utility.ClampParameter(ms, MinReleaseMs, MaxReleaseMs))))
}

// SetHoldTimeMs clamps and stores the last-mic hold duration in milliseconds.
func (e *Engine) SetHoldTimeMs(ms float64) {
	e.holdMs.Store(math.Float32bits(float32(utility.ClampParameter(ms, MinHoldMs, MaxHoldMs))))
}

// SetNomAttenEnabled enables or disables NOM attenuation.
func (e *Engine) SetNomAttenEnabled(enabled bool) {
	e.nomAttenEnabled.Store(enabled)
}


// ---- Metering getters ----

// ChannelMetering mirrors the ABI's stable record layout for one channel.
type ChannelMetering struct {
	InputRmsDb   float32
	GainDb       float32
	OutputRmsDb  float32
	NoiseFloorDb float32
	IsActive     bool
}

// GlobalMetering mirrors the ABI's stable record layout for the engine.
type GlobalMetering struct {
	NomCount         float32
	NomAttenuationDb float32
}

// GetChannelMetering reads channel ch's published metering. It returns
// false if ch is out of range.
func (e *Engine) GetChannelMetering(ch int) (ChannelMetering, bool) {
	c := e.channelAt(ch)
	if c == nil {
		return ChannelMetering{}, false
	}
	snap := c.meter.Load()
	return ChannelMetering{
		InputRmsDb:   snap.InputRmsDb,
		GainDb:       snap.GainDb,
		OutputRmsDb:  snap.OutputRmsDb,
		NoiseFloorDb: snap.NoiseFloorDb,
		IsActive:     snap.IsActive,
	}, true
}

// GetGlobalMetering reads the engine's published global metering.
func (e *Engine) GetGlobalMetering() GlobalMetering {
	snap := e.globalMeter.Load()
	return GlobalMetering{NomCount: snap.NomCount, NomAttenuationDb: snap.NomAttenuationDb}
}

// GetAllChannelMetering writes up to len(out) channel metering records and
// returns the number written (min(NumChannels, len(out))).
func (e *Engine) GetAllChannelMetering(out []ChannelMetering) int {
	n := e.numChannels
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i], _ = e.GetChannelMetering(i)
	}
	return n
}

// Process runs one block of audio through the mixer in place. channels
// must contain one slice per engine channel (extra slices beyond
// NumChannels are ignored); each inner slice must have the same length,
// which must not exceed the engine's configured max block size. A zero
// length is a valid no-op.
func (e *Engine) Process(channels [][]float32) {
	n := len(channels)
	if n > e.numChannels {
		n = e.numChannels
	}
	if n == 0 {
		return
	}
	numSamples := len(channels[0])
	if numSamples == 0 {
		return
	}

	e.refreshCoefficients()

	if e.globalBypass.Load() {
		e.processBypass(channels[:n], numSamples)
		return
	}

	hot := e.scratchHot[:n]
	cold := e.scratchCold[:n]
	mode := e.scratchMode[:n]
	env := e.scratchEnv[:n]
	contribution := e.scratchContribution[:n]
	rawGain := e.scratchRawGain[:n]
	participating := e.scratchParticipating[:n]

	for i := 0; i < n; i++ {
		e.channels[i].inputAcc.Reset()
		e.channels[i].outputAcc.Reset()
		mode[i] = e.channels[i].mode()
	}

	anySoloActive := false
	for i := 0; i < n; i++ {
		if mode[i].Soloed {
			anySoloActive = true
			break
		}
	}
	for i := 0; i < n; i++ {
		participating[i] = sharing.IsParticipating(mode[i], anySoloActive)
	}

	holdSamples := int64(e.cachedHoldMs * e.sampleRate / 1000.0)

	for s := 0; s < numSamples; s++ {
		for i := 0; i < n; i++ {
			ch := e.channels[i]
			x := gain.FiniteOr(channels[i][s], 0)
			ch.inputAcc.Add(x)

			envVal := ch.detector.Process(x)
			env[i] = envVal
			fl := ch.floor.Process(envVal)
			ch.noiseFloor = fl
			hot[i] = ch.floor.Hot(envVal)
			cold[i] = ch.floor.Cold(envVal)
		}

		lastHotChannel := e.lastHot.Channel()
		lastHotValid := e.lastHot.HasChannel()

		// The last-hot channel only moves into Holding when it goes cold
		// while no participating channel is hot; otherwise it drops to Idle.
		anyHot := false
		for i := 0; i < n; i++ {
			if hot[i] && participating[i] {
				anyHot = true
				break
			}
		}

		for i := 0; i < n; i++ {
			mayHold := lastHotValid && lastHotChannel == i && !anyHot
			e.channels[i].gate.Advance(hot[i], cold[i], mayHold, holdSamples)
			if !participating[i] {
				e.channels[i].gate.Release()
				e.lastHot.Release(i)
			}
		}
		e.lastHot.Update(hot, participating)

		heldChannel := -1
		heldValid := false
		activeCount := 0
		for i := 0; i < n; i++ {
			active := e.channels[i].gate.IsActive()
			contribution[i] = sharing.Contribution(env[i], mode[i], active, anySoloActive)
			if active && participating[i] {
				activeCount++
			}
			if e.channels[i].gate.State() == activity.Holding {
				heldChannel = i
				heldValid = true
			}
		}
		e.nom.Update(activeCount)

		sharing.DuganGains(contribution, participating, heldChannel, heldValid, rawGain)

		for i := 0; i < n; i++ {
			ch := e.channels[i]
			var g float64
			if mode[i].Bypassed {
				g = 1.0
				ch.smoother.Reset(g)
			} else {
				target := rawGain[i] * e.nom.Attenuation()
				g = ch.smoother.Process(target)
			}
			out := gain.ApplySanitized(channels[i][s], float32(g), 0)
			channels[i][s] = out
			ch.outputAcc.Add(out)
		}
	}

	e.publishMeters(n)
}

func (e *Engine) processBypass(channels [][]float32, numSamples int) {
	for i := range channels {
		ch := e.channels[i]
		var acc meter.BlockAccumulator
		for s := 0; s < numSamples; s++ {
			x := gain.FiniteOr(channels[i][s], 0)
			channels[i][s] = x
			acc.Add(x)
		}
		db := acc.Db()
		snap := ch.meter.Load()
		ch.meter.Publish(db, 0, db, snap.NoiseFloorDb, snap.IsActive)
	}
}

func (e *Engine) refreshCoefficients() {
	attackMs := float64(math.Float32frombits(e.attackMs.Load()))
	releaseMs := float64(math.Float32frombits(e.releaseMs.Load()))
	holdMs := float64(math.Float32frombits(e.holdMs.Load()))

	if attackMs != e.cachedAttackMs || releaseMs != e.cachedReleaseMs {
		for _, ch := range e.channels {
			ch.smoother.SetTimeConstants(msToSec(attackMs), msToSec(releaseMs), e.sampleRate)
		}
		e.cachedAttackMs = attackMs
		e.cachedReleaseMs = releaseMs
	}
	e.cachedHoldMs = holdMs
	e.nom.SetEnabled(e.nomAttenEnabled.Load())
}

func (e *Engine) publishMeters(n int) {
	for i := 0; i < n; i++ {
		ch := e.channels[i]
		ch.meter.Publish(
			ch.inputAcc.Db(),
			meter.LinearToDb(ch.smoother.Value()),
			ch.outputAcc.Db(),
			meter.LinearToDb(ch.noiseFloor),
			ch.gate.IsActive(),
		)
	}
	e.globalMeter.Publish(float32(e.nom.Count()), float32(e.nom.AttenuationDb()))
}
