// Package abi exposes the mixer engine through a C-compatible ABI (the
// boundary layer B): an opaque integer handle indexing a registry of
// live engines, plus exported functions for lifecycle, parameter, and
// metering access. This is the only package in the module compiled with
// cgo; everything else is pure Go.
package abi

/*
#include <stdint.h>
#include <stdbool.h>

typedef struct {
	float input_rms_db;
	float gain_db;
	float output_rms_db;
	float noise_floor_db;
	bool  is_active;
} AutomixChannelMetering;

typedef struct {
	float nom_count;
	float nom_attenuation_db;
} AutomixGlobalMetering;
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/go-automix/automix/pkg/engine"
)

// handleEntry pairs a live engine with a reusable channel-pointer scratch
// slice, so automix_process never allocates on the hot path either.
type handleEntry struct {
	eng     *engine.Engine
	scratch [][]float32
}

var (
	registryMu sync.Mutex
	registry   = make(map[uint64]*handleEntry)
	nextHandle uint64
)

func register(e *engine.Engine) uint64 {
	registryMu.Lock()
	defer registryMu.Unlock()
	nextHandle++
	h := nextHandle
	registry[h] = &handleEntry{
		eng:     e,
		scratch: make([][]float32, e.NumChannels()),
	}
	return h
}

func lookup(h uint64) *handleEntry {
	if h == 0 {
		return nil
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[h]
}

func unregister(h uint64) {
	if h == 0 {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, h)
}

const version = "1.0.0"

var versionCString = C.CString(version)

//export automix_version
func automix_version() *C.char {
	return versionCString
}

//export automix_create
func automix_create(numChannels C.uint32_t, sampleRate C.float, maxBlockSize C.uint32_t) C.uintptr_t {
	e, err := engine.New(int(numChannels), float64(sampleRate), int(maxBlockSize))
	if err != nil {
		return 0
	}
	return C.uintptr_t(register(e))
}

//export automix_destroy
func automix_destroy(handle C.uintptr_t) {
	unregister(uint64(handle))
}

//export automix_process
func automix_process(handle C.uintptr_t, ptrs **C.float, numChannelsInCall C.uint32_t, numSamples C.uint32_t) {
	if ptrs == nil || numSamples == 0 {
		return
	}
	entry := lookup(uint64(handle))
	if entry == nil {
		return
	}
	n := int(numChannelsInCall)
	if n > entry.eng.NumChannels() {
		n = entry.eng.NumChannels()
	}
	if n == 0 {
		return
	}

	cPtrs := unsafe.Slice(ptrs, n)
	scratch := entry.scratch[:n]
	for i := 0; i < n; i++ {
		if cPtrs[i] == nil {
			return
		}
		scratch[i] = unsafe.Slice((*float32)(unsafe.Pointer(cPtrs[i])), int(numSamples))
	}
	entry.eng.Process(scratch)
}

//export automix_set_channel_weight
func automix_set_channel_weight(handle C.uintptr_t, ch C.uint32_t, value C.float) {
	if e := engineOf(handle); e != nil {
		e.SetChannelWeight(int(ch), float64(value))
	}
}

//export automix_set_channel_mute
func automix_set_channel_mute(handle C.uintptr_t, ch C.uint32_t, muted C.bool) {
	if e := engineOf(handle); e != nil {
		e.SetChannelMute(int(ch), bool(muted))
	}
}

//export automix_set_channel_solo
func automix_set_channel_solo(handle C.uintptr_t, ch C.uint32_t, soloed C.bool) {
	if e := engineOf(handle); e != nil {
		e.SetChannelSolo(int(ch), bool(soloed))
	}
}

//export automix_set_channel_bypass
func automix_set_channel_bypass(handle C.uintptr_t, ch C.uint32_t, bypassed C.bool) {
	if e := engineOf(handle); e != nil {
		e.SetChannelBypass(int(ch), bool(bypassed))
	}
}

//export automix_set_global_bypass
func automix_set_global_bypass(handle C.uintptr_t, bypass C.bool) {
	if e := engineOf(handle); e != nil {
		e.SetGlobalBypass(bool(bypass))
	}
}

//export automix_set_attack_ms
func automix_set_attack_ms(handle C.uintptr_t, ms C.float) {
	if e := engineOf(handle); e != nil {
		e.SetAttackMs(float64(ms))
	}
}

//export automix_set_release_ms
func automix_set_release_ms(handle C.uintptr_t, ms C.float) {
	if e := engineOf(handle); e != nil {
		e.SetReleaseMs(float64(ms))
	}
}

//export automix_set_hold_time_ms
func automix_set_hold_time_ms(handle C.uintptr_t, ms C.float) {
	if e := engineOf(handle); e != nil {
		e.SetHoldTimeMs(float64(ms))
	}
}

//export automix_set_nom_atten_enabled
func automix_set_nom_atten_enabled(handle C.uintptr_t, enabled C.bool) {
	if e := engineOf(handle); e != nil {
		e.SetNomAttenEnabled(bool(enabled))
	}
}

//export automix_get_channel_metering
func automix_get_channel_metering(handle C.uintptr_t, ch C.uint32_t, out *C.AutomixChannelMetering) C.bool {
	e := engineOf(handle)
	if e == nil || out == nil {
		return false
	}
	m, ok := e.GetChannelMetering(int(ch))
	if !ok {
		return false
	}
	out.input_rms_db = C.float(m.InputRmsDb)
	out.gain_db = C.float(m.GainDb)
	out.output_rms_db = C.float(m.OutputRmsDb)
	out.noise_floor_db = C.float(m.NoiseFloorDb)
	out.is_active = C.bool(m.IsActive)
	return true
}

//export automix_get_global_metering
func automix_get_global_metering(handle C.uintptr_t, out *C.AutomixGlobalMetering) C.bool {
	e := engineOf(handle)
	if e == nil || out == nil {
		return false
	}
	g := e.GetGlobalMetering()
	out.nom_count = C.float(g.NomCount)
	out.nom_attenuation_db = C.float(g.NomAttenuationDb)
	return true
}

//export automix_get_all_channel_metering
func automix_get_all_channel_metering(handle C.uintptr_t, out *C.AutomixChannelMetering, maxCount C.uint32_t) C.uint32_t {
	e := engineOf(handle)
	if e == nil || out == nil || maxCount == 0 {
		return 0
	}
	n := e.NumChannels()
	if int(maxCount) < n {
		n = int(maxCount)
	}
	outSlice := unsafe.Slice(out, n)
	for i := 0; i < n; i++ {
		m, _ := e.GetChannelMetering(i)
		outSlice[i] = C.AutomixChannelMetering{
			input_rms_db:   C.float(m.InputRmsDb),
			gain_db:        C.float(m.GainDb),
			output_rms_db:  C.float(m.OutputRmsDb),
			noise_floor_db: C.float(m.NoiseFloorDb),
			is_active:      C.bool(m.IsActive),
		}
	}
	return C.uint32_t(n)
}

func engineOf(handle C.uintptr_t) *engine.Engine {
	entry := lookup(uint64(handle))
	if entry == nil {
		return nil
	}
	return entry.eng
}
