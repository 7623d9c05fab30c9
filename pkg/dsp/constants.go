// Package dsp provides digital signal processing utilities and algorithms.
package dsp

// Epsilon guards small-value comparisons (e.g. a gain-sharing sum near
// zero) against treating floating-point noise as a real signal.
const Epsilon = 1e-6
