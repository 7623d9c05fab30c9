package engine

import (
	"math"
	"testing"

	"github.com/go-automix/automix/pkg/dsp/meter"
)

const testSampleRate = 48000.0
const testBlockSize = 256

func constBlock(n int, value float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = value
	}
	return b
}

func runBlocks(e *Engine, channels [][]float32, blocks int) {
	for i := 0; i < blocks; i++ {
		e.Process(channels)
	}
}

func TestNewRejectsZeroChannels(t *testing.T) {
	if _, err := New(0, testSampleRate, testBlockSize); err != ErrChannelCount {
		t.Errorf("expected ErrChannelCount, got %v", err)
	}
}

func TestNewRejectsTooManyChannels(t *testing.T) {
	if _, err := New(MaxChannels+1, testSampleRate, testBlockSize); err != ErrChannelCount {
		t.Errorf("expected ErrChannelCount, got %v", err)
	}
}

func TestNewRejectsNonPositiveSampleRate(t *testing.T) {
	if _, err := New(2, 0, testBlockSize); err != ErrSampleRate {
		t.Errorf("expected ErrSampleRate, got %v", err)
	}
}

func TestNewRejectsBadBlockSize(t *testing.T) {
	if _, err := New(2, testSampleRate, 0); err != ErrBlockSize {
		t.Errorf("expected ErrBlockSize, got %v", err)
	}
	if _, err := New(2, testSampleRate, MaxBlockSize+1); err != ErrBlockSize {
		t.Errorf("expected ErrBlockSize, got %v", err)
	}
}

// S1 Silence
func TestScenarioSilence(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	ch0 := constBlock(testBlockSize, 0)
	ch1 := constBlock(testBlockSize, 0)
	runBlocks(e, [][]float32{ch0, ch1}, 100)

	for _, s := range ch0 {
		if s != 0 {
			t.Fatalf("expected exact zero output, got %f", s)
		}
	}
	m0, _ := e.GetChannelMetering(0)
	if m0.InputRmsDb != float32(meter.MinDb) || m0.OutputRmsDb != float32(meter.MinDb) {
		t.Errorf("expected -120dB rms, got input=%f output=%f", m0.InputRmsDb, m0.OutputRmsDb)
	}
	if m0.IsActive {
		t.Error("expected inactive on silence")
	}
	g := e.GetGlobalMetering()
	if g.NomCount > 0.01 {
		t.Errorf("expected nom_count -> 0, got %f", g.NomCount)
	}
}

// S2 Single channel passthrough
func TestScenarioSingleChannelPassthrough(t *testing.T) {
	e, _ := New(1, testSampleRate, testBlockSize)
	blocks := make([][]float32, 1)
	var last float32
	for i := 0; i < 200; i++ {
		blocks[0] = constBlock(testBlockSize, 0.5)
		e.Process(blocks)
		last = blocks[0][testBlockSize-1]
	}
	if math.Abs(float64(last-0.5)) > 0.05 {
		t.Errorf("expected final sample near 0.5, got %f", last)
	}
}

// S3 Dominance
func TestScenarioDominance(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	var last0, last1 float32
	for i := 0; i < 200; i++ {
		ch0 := constBlock(testBlockSize, 0.8)
		ch1 := constBlock(testBlockSize, 0.2)
		e.Process([][]float32{ch0, ch1})
		last0 = ch0[testBlockSize-1]
		last1 = ch1[testBlockSize-1]
	}
	if !(math.Abs(float64(last0)) > math.Abs(float64(last1))) {
		t.Errorf("expected |out0| > |out1|, got out0=%f out1=%f", last0, last1)
	}
	if math.IsNaN(float64(last0)) || math.IsNaN(float64(last1)) {
		t.Error("expected finite outputs")
	}
	m0, _ := e.GetChannelMetering(0)
	m1, _ := e.GetChannelMetering(1)
	if m0.GainDb <= m1.GainDb {
		t.Errorf("expected gain[0] > gain[1], got gain0=%f gain1=%f", m0.GainDb, m1.GainDb)
	}
}

// S4 Weight skew
func TestScenarioWeightSkew(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	e.SetChannelWeight(0, 1.0)
	e.SetChannelWeight(1, 0.1)
	var last0, last1 float32
	for i := 0; i < 200; i++ {
		ch0 := constBlock(testBlockSize, 0.5)
		ch1 := constBlock(testBlockSize, 0.5)
		e.Process([][]float32{ch0, ch1})
		last0 = ch0[testBlockSize-1]
		last1 = ch1[testBlockSize-1]
	}
	if !(math.Abs(float64(last0)) > math.Abs(float64(last1))) {
		t.Errorf("expected |out0| > |out1| under weight skew, got out0=%f out1=%f", last0, last1)
	}
}

// S5 Global bypass
func TestScenarioGlobalBypass(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	e.SetGlobalBypass(true)
	ch0 := constBlock(testBlockSize, 0.5)
	ch1 := constBlock(testBlockSize, 0.3)
	wantCh0 := append([]float32{}, ch0...)
	wantCh1 := append([]float32{}, ch1...)
	e.Process([][]float32{ch0, ch1})
	for i := range ch0 {
		if ch0[i] != wantCh0[i] || ch1[i] != wantCh1[i] {
			t.Fatalf("expected bit-exact passthrough at %d: got ch0=%f ch1=%f", i, ch0[i], ch1[i])
		}
	}
}

// S6 NaN injection
func TestScenarioNaNInjection(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	for i := 0; i < 100; i++ {
		ch0 := constBlock(testBlockSize, 0.5)
		ch1 := constBlock(testBlockSize, 0.5)
		e.Process([][]float32{ch0, ch1})
	}

	nanBlock := constBlock(testBlockSize, float32(math.NaN()))
	ch1 := constBlock(testBlockSize, 0.5)
	e.Process([][]float32{nanBlock, ch1})
	for i, s := range nanBlock {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("expected finite output at %d, got %f", i, s)
		}
	}
	m0, _ := e.GetChannelMetering(0)
	if math.IsNaN(float64(m0.InputRmsDb)) || math.IsNaN(float64(m0.GainDb)) {
		t.Errorf("expected finite meters after NaN injection, got %+v", m0)
	}

	// engine continues to operate on subsequent finite input
	for i := 0; i < 5; i++ {
		ch0 := constBlock(testBlockSize, 0.5)
		ch1b := constBlock(testBlockSize, 0.5)
		e.Process([][]float32{ch0, ch1b})
		for _, s := range ch0 {
			if math.IsNaN(float64(s)) {
				t.Fatal("expected engine to recover to finite output")
			}
		}
	}
}

// S7 Solo
func TestScenarioSolo(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	e.SetChannelSolo(0, true)
	var last0, last1 float32
	for i := 0; i < 200; i++ {
		ch0 := constBlock(testBlockSize, 0.5)
		ch1 := constBlock(testBlockSize, 0.5)
		e.Process([][]float32{ch0, ch1})
		last0 = ch0[testBlockSize-1]
		last1 = ch1[testBlockSize-1]
	}
	if math.Abs(float64(last0)) <= 0.1 {
		t.Errorf("expected soloed channel output > 0.1, got %f", last0)
	}
	if math.Abs(float64(last1)) >= 0.01 {
		t.Errorf("expected non-soloed channel output < 0.01, got %f", last1)
	}
}

func TestChannelBypassIsUnity(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	e.SetChannelBypass(0, true)
	ch0 := constBlock(testBlockSize, 0.42)
	ch1 := constBlock(testBlockSize, 0.5)
	for i := 0; i < 5; i++ {
		e.Process([][]float32{ch0, ch1})
	}
	for _, s := range ch0 {
		if math.Abs(float64(s-0.42)) > 1e-4 {
			t.Errorf("expected bypassed channel output == input, got %f", s)
		}
	}
}

func TestMuteSilencesChannel(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	e.SetChannelMute(0, true)
	var last0 float32
	for i := 0; i < 200; i++ {
		ch0 := constBlock(testBlockSize, 0.5)
		ch1 := constBlock(testBlockSize, 0.5)
		e.Process([][]float32{ch0, ch1})
		last0 = ch0[testBlockSize-1]
	}
	if math.Abs(float64(last0)) >= 0.01 {
		t.Errorf("expected muted channel output < 0.01, got %f", last0)
	}
}

func TestMeterRangeBounds(t *testing.T) {
	e, _ := New(3, testSampleRate, testBlockSize)
	for i := 0; i < 50; i++ {
		ch0 := constBlock(testBlockSize, 0.9)
		ch1 := constBlock(testBlockSize, 0.1)
		ch2 := constBlock(testBlockSize, 0)
		e.Process([][]float32{ch0, ch1, ch2})
	}
	for c := 0; c < 3; c++ {
		m, _ := e.GetChannelMetering(c)
		checkRange(t, "input", m.InputRmsDb)
		checkRange(t, "output", m.OutputRmsDb)
		checkRange(t, "gain", m.GainDb)
		checkRange(t, "noisefloor", m.NoiseFloorDb)
	}
	g := e.GetGlobalMetering()
	if g.NomCount < 0 || g.NomCount > 3 {
		t.Errorf("expected nom_count in [0,3], got %f", g.NomCount)
	}
	if g.NomAttenuationDb > 0 {
		t.Errorf("expected nom_attenuation_db <= 0, got %f", g.NomAttenuationDb)
	}
}

func checkRange(t *testing.T, label string, v float32) {
	t.Helper()
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		t.Errorf("%s: expected finite, got %f", label, v)
	}
	if v < -120 || v > 24 {
		t.Errorf("%s: expected in [-120,24], got %f", label, v)
	}
}

func TestOutOfRangeChannelIndexIsIgnored(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	e.SetChannelWeight(5, 1.0)
	e.SetChannelMute(-1, true)
	if _, ok := e.GetChannelMetering(5); ok {
		t.Error("expected out-of-range getter to report false")
	}
}

func TestZeroSampleProcessIsNoop(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	ch0 := []float32{}
	ch1 := []float32{}
	e.Process([][]float32{ch0, ch1})
}

func TestExcessChannelPointersIgnored(t *testing.T) {
	e, _ := New(1, testSampleRate, testBlockSize)
	ch0 := constBlock(testBlockSize, 0.5)
	ch1 := constBlock(testBlockSize, 0.9)
	want1 := append([]float32{}, ch1...)
	e.Process([][]float32{ch0, ch1})
	for i := range ch1 {
		if ch1[i] != want1[i] {
			t.Fatalf("expected excess channel pointer to be left untouched, got %f want %f", ch1[i], want1[i])
		}
	}
}

// Last-mic hold: a channel that goes quiet after speaking should stay
// active (Holding) for the configured hold window instead of gating
// straight to Idle.
func TestHoldKeepsChannelActiveAfterSpeakerGoesQuiet(t *testing.T) {
	e, _ := New(2, testSampleRate, testBlockSize)
	e.SetHoldTimeMs(500)

	for i := 0; i < 50; i++ {
		ch0 := constBlock(testBlockSize, 0.8)
		ch1 := constBlock(testBlockSize, 0)
		e.Process([][]float32{ch0, ch1})
	}

	// Channel 0 falls silent; with a 500ms hold it should still report
	// active for a few blocks instead of instantly gating to idle.
	for i := 0; i < 3; i++ {
		ch0 := constBlock(testBlockSize, 0)
		ch1 := constBlock(testBlockSize, 0)
		e.Process([][]float32{ch0, ch1})
	}
	m0, _ := e.GetChannelMetering(0)
	if !m0.IsActive {
		t.Error("expected held channel to still report active shortly after going quiet")
	}
}

func TestUnitySumForEqualChannels(t *testing.T) {
	e, _ := New(3, testSampleRate, testBlockSize)
	e.SetNomAttenEnabled(false)
	var last [3]float32
	for i := 0; i < 400; i++ {
		ch0 := constBlock(testBlockSize, 0.5)
		ch1 := constBlock(testBlockSize, 0.5)
		ch2 := constBlock(testBlockSize, 0.5)
		e.Process([][]float32{ch0, ch1, ch2})
		last[0], last[1], last[2] = ch0[testBlockSize-1], ch1[testBlockSize-1], ch2[testBlockSize-1]
	}
	var gainSum float64
	for c := 0; c < 3; c++ {
		m, _ := e.GetChannelMetering(c)
		gainSum += math.Pow(10, float64(m.GainDb)/20.0)
	}
	if math.Abs(gainSum-1.0) > 0.05 {
		t.Errorf("expected sum of gains near 1, got %f", gainSum)
	}
}
