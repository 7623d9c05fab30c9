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

import "unsafe"

// cgo forbids "import \"C\"" in _test.go files, so abi_test.go exercises
// the exported ABI through these Go-typed wrappers instead of touching
// C types directly.

// ChannelMetering mirrors AutomixChannelMetering with Go types.
type ChannelMetering struct {
	InputRmsDb   float32
	GainDb       float32
	OutputRmsDb  float32
	NoiseFloorDb float32
	IsActive     bool
}

// GlobalMetering mirrors AutomixGlobalMetering with Go types.
type GlobalMetering struct {
	NomCount         float32
	NomAttenuationDb float32
}

func testCreate(numChannels uint32, sampleRate float32, maxBlockSize uint32) uintptr {
	return uintptr(automix_create(C.uint32_t(numChannels), C.float(sampleRate), C.uint32_t(maxBlockSize)))
}

func testDestroy(handle uintptr) {
	automix_destroy(C.uintptr_t(handle))
}

func testProcess(handle uintptr, ptrs [][]float32, numChannelsInCall uint32, numSamples uint32) {
	var pp **C.float
	if ptrs != nil {
		cPtrs := make([]*C.float, len(ptrs))
		for i, b := range ptrs {
			if len(b) == 0 {
				continue
			}
			cPtrs[i] = (*C.float)(unsafe.Pointer(&b[0]))
		}
		if len(cPtrs) > 0 {
			pp = (**C.float)(unsafe.Pointer(&cPtrs[0]))
		}
	}
	automix_process(C.uintptr_t(handle), pp, C.uint32_t(numChannelsInCall), C.uint32_t(numSamples))
}

func testSetChannelWeight(handle uintptr, ch uint32, value float32) {
	automix_set_channel_weight(C.uintptr_t(handle), C.uint32_t(ch), C.float(value))
}

func testSetChannelMute(handle uintptr, ch uint32, muted bool) {
	automix_set_channel_mute(C.uintptr_t(handle), C.uint32_t(ch), C.bool(muted))
}

func testSetGlobalBypass(handle uintptr, bypass bool) {
	automix_set_global_bypass(C.uintptr_t(handle), C.bool(bypass))
}

func testSetAttackMs(handle uintptr, ms float32) {
	automix_set_attack_ms(C.uintptr_t(handle), C.float(ms))
}

func testGetChannelMetering(handle uintptr, ch uint32) (ChannelMetering, bool) {
	var out C.AutomixChannelMetering
	ok := bool(automix_get_channel_metering(C.uintptr_t(handle), C.uint32_t(ch), &out))
	return ChannelMetering{
		InputRmsDb:   float32(out.input_rms_db),
		GainDb:       float32(out.gain_db),
		OutputRmsDb:  float32(out.output_rms_db),
		NoiseFloorDb: float32(out.noise_floor_db),
		IsActive:     bool(out.is_active),
	}, ok
}

func testGetGlobalMetering(handle uintptr) (GlobalMetering, bool) {
	var out C.AutomixGlobalMetering
	ok := bool(automix_get_global_metering(C.uintptr_t(handle), &out))
	return GlobalMetering{
		NomCount:         float32(out.nom_count),
		NomAttenuationDb: float32(out.nom_attenuation_db),
	}, ok
}

func testGetAllChannelMetering(handle uintptr, maxCount uint32) ([]ChannelMetering, uint32) {
	cOut := make([]C.AutomixChannelMetering, maxCount)
	var ptr *C.AutomixChannelMetering
	if maxCount > 0 {
		ptr = &cOut[0]
	}
	n := automix_get_all_channel_metering(C.uintptr_t(handle), ptr, C.uint32_t(maxCount))
	result := make([]ChannelMetering, int(n))
	for i := range result {
		result[i] = ChannelMetering{
			InputRmsDb:   float32(cOut[i].input_rms_db),
			GainDb:       float32(cOut[i].gain_db),
			OutputRmsDb:  float32(cOut[i].output_rms_db),
			NoiseFloorDb: float32(cOut[i].noise_floor_db),
			IsActive:     bool(cOut[i].is_active),
		}
	}
	return result, uint32(n)
}

func testVersionPtr() unsafe.Pointer {
	return unsafe.Pointer(automix_version())
}

func testVersionString() string {
	return C.GoString(automix_version())
}
