// Package meter implements the metering aggregator (C9): per-channel and
// global level/gain telemetry published lock-free via sync/atomic so a
// UI thread can read it concurrently with the audio thread writing it.
package meter

import (
	"math"
	"sync/atomic"
)

// MinDb is the floor every reported dB value is clamped to, matching
// spec.md's silence-threshold convention.
const MinDb = -120.0

// DbEpsilon keeps the log argument away from zero when accumulated energy
// is exactly silent.
const DbEpsilon = 1e-12

// ChannelMeter holds one channel's published metering values. All fields
// are written with atomic stores from the audio thread and read with
// atomic loads from any other thread; there is no lock.
type ChannelMeter struct {
	inputRmsDb   atomic.Uint32 // float32 bits
	gainDb       atomic.Uint32
	outputRmsDb  atomic.Uint32
	noiseFloorDb atomic.Uint32
	isActive     atomic.Bool
}

// Publish atomically stores a new snapshot of this channel's metering.
func (m *ChannelMeter) Publish(inputRmsDb, gainDb, outputRmsDb, noiseFloorDb float32, isActive bool) {
	m.inputRmsDb.Store(math.Float32bits(inputRmsDb))
	m.gainDb.Store(math.Float32bits(gainDb))
	m.outputRmsDb.Store(math.Float32bits(outputRmsDb))
	m.noiseFloorDb.Store(math.Float32bits(noiseFloorDb))
	m.isActive.Store(isActive)
}

// Snapshot is a point-in-time read of a channel's metering.
type Snapshot struct {
	InputRmsDb   float32
	GainDb       float32
	OutputRmsDb  float32
	NoiseFloorDb float32
	IsActive     bool
}

// Load reads the current snapshot.
func (m *ChannelMeter) Load() Snapshot {
	return Snapshot{
		InputRmsDb:   math.Float32frombits(m.inputRmsDb.Load()),
		GainDb:       math.Float32frombits(m.gainDb.Load()),
		OutputRmsDb:  math.Float32frombits(m.outputRmsDb.Load()),
		NoiseFloorDb: math.Float32frombits(m.noiseFloorDb.Load()),
		IsActive:     m.isActive.Load(),
	}
}

// GlobalMeter holds the engine-wide metering values.
type GlobalMeter struct {
	nomCount         atomic.Uint32 // float32 bits
	nomAttenuationDb atomic.Uint32
}

// Publish atomically stores a new global metering snapshot.
func (g *GlobalMeter) Publish(nomCount, nomAttenuationDb float32) {
	g.nomCount.Store(math.Float32bits(nomCount))
	g.nomAttenuationDb.Store(math.Float32bits(nomAttenuationDb))
}

// GlobalSnapshot is a point-in-time read of the global metering.
type GlobalSnapshot struct {
	NomCount         float32
	NomAttenuationDb float32
}

// Load reads the current global snapshot.
func (g *GlobalMeter) Load() GlobalSnapshot {
	return GlobalSnapshot{
		NomCount:         math.Float32frombits(g.nomCount.Load()),
		NomAttenuationDb: math.Float32frombits(g.nomAttenuationDb.Load()),
	}
}

// BlockAccumulator sums squared samples across a block so a per-block RMS
// in dB can be derived once the block is complete, rather than converting
// to dB on every sample.
type BlockAccumulator struct {
	sumSq float64
	n     int
}

// Add folds one sample's squared magnitude into the running sum.
func (a *BlockAccumulator) Add(x float32) {
	a.sumSq += float64(x) * float64(x)
	a.n++
}

// Reset clears the accumulator for the next block.
func (a *BlockAccumulator) Reset() {
	a.sumSq = 0
	a.n = 0
}

// Db converts the accumulated mean-square energy to dB, clamped to MinDb.
func (a *BlockAccumulator) Db() float32 {
	if a.n == 0 {
		return MinDb
	}
	meanSq := a.sumSq/float64(a.n) + DbEpsilon
	db := 10.0 * math.Log10(meanSq)
	if db < MinDb {
		db = MinDb
	}
	return float32(db)
}

// LinearToDb converts a linear gain to dB, clamped to MinDb, matching the
// 20*log10(g+eps) convention used for gain and envelope metering (as
// opposed to the 10*log10 power convention BlockAccumulator.Db uses for
// already-squared energy).
func LinearToDb(linear float64) float32 {
	db := 20.0 * math.Log10(linear+DbEpsilon)
	if db < MinDb {
		db = MinDb
	}
	return float32(db)
}
