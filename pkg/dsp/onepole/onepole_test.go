package onepole

import (
	"math"
	"testing"
)

func TestCoeffFromTimeInstantOnNonPositive(t *testing.T) {
	if c := CoeffFromTime(0, 48000); c != 1.0 {
		t.Errorf("zero time constant: got %f, want 1.0", c)
	}
	if c := CoeffFromTime(-1, 48000); c != 1.0 {
		t.Errorf("negative time constant: got %f, want 1.0", c)
	}
	if c := CoeffFromTime(0.005, 0); c != 1.0 {
		t.Errorf("zero sample rate: got %f, want 1.0", c)
	}
}

func TestFollowerConvergesToTarget(t *testing.T) {
	f := NewFollower(0.005, 48000)
	for i := 0; i < 48000; i++ {
		f.Process(1.0)
	}
	if math.Abs(f.Value()-1.0) > 1e-6 {
		t.Errorf("did not converge: got %f", f.Value())
	}
}

func TestFollowerReset(t *testing.T) {
	f := NewFollower(0.005, 48000)
	for i := 0; i < 1000; i++ {
		f.Process(1.0)
	}
	f.Reset(0.25)
	if f.Value() != 0.25 {
		t.Errorf("reset did not set immediate value: got %f", f.Value())
	}
}

func TestAsymFollowerAttackFasterThanRelease(t *testing.T) {
	attack := NewAsymFollower(0.005, 0.150, 48000)
	release := NewAsymFollower(0.005, 0.150, 48000)

	riseSamples := 240 // 5ms at 48kHz
	for i := 0; i < riseSamples; i++ {
		attack.Process(1.0)
	}
	afterAttack := attack.Value()

	release.Reset(1.0)
	for i := 0; i < riseSamples; i++ {
		release.Process(0.0)
	}
	afterRelease := release.Value()

	if !(afterAttack > (1.0 - afterRelease)) {
		t.Errorf("expected attack to outpace release: afterAttack=%f afterRelease=%f", afterAttack, afterRelease)
	}
}

func TestAsymFollowerPicksCoeffByDirection(t *testing.T) {
	f := NewAsymFollower(0.001, 1.0, 48000) // fast attack, very slow release
	for i := 0; i < 48; i++ { // one attack time constant (1ms at 48kHz)
		f.Process(1.0)
	}
	fast := f.Value()
	if fast < 0.5 {
		t.Errorf("expected fast rise with short attack constant, got %f", fast)
	}

	f2 := NewAsymFollower(1.0, 0.001, 48000) // slow attack, fast release
	f2.Reset(1.0)
	for i := 0; i < 48; i++ { // one release time constant (1ms at 48kHz)
		f2.Process(0.0)
	}
	if f2.Value() > 0.5 {
		t.Errorf("expected fast fall with short release constant, got %f", f2.Value())
	}
}
