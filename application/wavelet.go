// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Central frequency of the complex Morlet mother wavelet
const morletOmega0 = 6.0

// Fewest samples a trimmed decomposition may keep
const minDecomposedLen = 8

// morletFourierFactor converts a period in samples to the Morlet wavelet
// scale parameter (Torrence & Compo relation for omega0 = 6).
func morletFourierFactor() float64 {
	return (morletOmega0 + math.Sqrt(2+morletOmega0*morletOmega0)) / (4 * math.Pi)
}

// waveletDecompose computes the continuous complex Morlet wavelet transform
// of the series at one integer timescale (in sampling periods) and returns
// the instantaneous phase and amplitude. edgeTrim periods of the scale are
// cut from each end, where the cone of influence corrupts the transform.
func waveletDecompose(series []float64, scale, edgeTrim int) (phase, amp []float64, err error) {
	n := len(series)
	if scale < 2 {
		return nil, nil, fmt.Errorf("scale must be >= 2 sampling periods, got %d", scale)
	}
	trim := edgeTrim * scale
	kept := n - 2*trim
	if kept < minDecomposedLen {
		return nil, nil, fmt.Errorf(
			"series too short for scale %d: %d samples left after trimming %d per edge",
			scale, kept, trim,
		)
	}

	s := float64(scale) * morletFourierFactor()

	// Convolution with the scaled wavelet, done in the frequency domain.
	cf := fourier.NewCmplxFFT(n)
	seq := make([]complex128, n)
	for i, v := range series {
		seq[i] = complex(v, 0)
	}
	coeff := cf.Coefficients(nil, seq)

	norm := math.Sqrt(2*math.Pi*s) * math.Pow(math.Pi, -0.25)
	for k := range coeff {
		var omega float64
		if k <= n/2 {
			omega = 2 * math.Pi * float64(k) / float64(n)
		} else {
			omega = 2 * math.Pi * float64(k-n) / float64(n)
		}
		// The analytic Morlet daughter lives on positive frequencies only.
		if omega <= 0 {
			coeff[k] = 0
			continue
		}
		arg := s*omega - morletOmega0
		coeff[k] *= complex(norm*math.Exp(-0.5*arg*arg), 0)
	}

	w := cf.Sequence(nil, coeff)

	phase = make([]float64, kept)
	amp = make([]float64, kept)
	inv := complex(1/float64(n), 0) // gonum transforms are unnormalized
	for t := 0; t < kept; t++ {
		c := w[t+trim] * inv
		phase[t] = math.Atan2(imag(c), real(c))
		amp[t] = cmplx.Abs(c)
	}
	return phase, amp, nil
}

// alignToWindow slices a decomposition trimmed by ownTrim samples per edge to
// the common centered window shared with a decomposition trimmed by
// otherTrim. Scales are aligned on the wider of the two trims so the sample
// at index t of both slices refers to the same time step.
func alignToWindow(x []float64, ownTrim, otherTrim int) []float64 {
	if otherTrim <= ownTrim {
		return x
	}
	off := otherTrim - ownTrim
	return x[off : len(x)-off]
}
