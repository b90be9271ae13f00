// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// seasonalCycles extracts the per-phase mean and standard deviation of the
// series at the given seasonality period. Cycles are indexed by t mod period,
// so the series is assumed to start on a cycle boundary.
func seasonalCycles(values []float64, period int) (SeasonalCycle, error) {
	if period < 1 {
		return SeasonalCycle{}, fmt.Errorf("period must be >= 1, got %d", period)
	}
	if len(values) < 2*period {
		return SeasonalCycle{}, fmt.Errorf(
			"need at least two full cycles (%d samples) to extract seasonality, got %d",
			2*period, len(values),
		)
	}

	mean := make([]float64, period)
	std := make([]float64, period)
	var phase []float64
	for m := 0; m < period; m++ {
		phase = phase[:0]
		for t := m; t < len(values); t += period {
			phase = append(phase, values[t])
		}
		mean[m] = stat.Mean(phase, nil)
		std[m] = stat.StdDev(phase, nil)
		if std[m] == 0 || math.IsNaN(std[m]) {
			// A constant phase carries no variance cycle to re-impose.
			std[m] = 1
		}
	}
	return SeasonalCycle{Mean: mean, Std: std, Period: period}, nil
}

// deseasonalize returns a copy of the series with the seasonal mean removed
// and the seasonal variance divided out.
func deseasonalize(values []float64, c SeasonalCycle) []float64 {
	out := make([]float64, len(values))
	for t, v := range values {
		m := t % c.Period
		out[t] = (v - c.Mean[m]) / c.Std[m]
	}
	return out
}

// reimposeSeasonality multiplies the seasonal variance back in and restores
// the seasonal mean, in place.
func reimposeSeasonality(values []float64, c SeasonalCycle) {
	for t := range values {
		m := t % c.Period
		values[t] = values[t]*c.Std[m] + c.Mean[m]
	}
}

// center subtracts the overall mean, in place.
func center(values []float64) {
	floats.AddConst(-stat.Mean(values, nil), values)
}

// NewSurrogateTemplate captures the Fourier spectrum of the prepared
// (deseasonalized) series. The template holds no mutable state; concurrent
// workers each build their own generator from it.
func NewSurrogateTemplate(values []float64) *SurrogateTemplate {
	n := len(values)
	fft := fourier.NewFFT(n)
	return &SurrogateTemplate{
		coeffs: fft.Coefficients(nil, values),
		n:      n,
	}
}

// surrogateGenerator produces phase-randomized realizations from one
// template. It owns its FFT plan and RNG and must not be shared between
// goroutines.
type surrogateGenerator struct {
	tpl *SurrogateTemplate
	fft *fourier.FFT
	rng *rand.Rand
	buf []complex128
}

// NewGenerator returns an independently seeded realization generator.
func (t *SurrogateTemplate) NewGenerator(seed int64) *surrogateGenerator {
	return &surrogateGenerator{
		tpl: t,
		fft: fourier.NewFFT(t.n),
		rng: rand.New(rand.NewSource(seed)),
		buf: make([]complex128, len(t.coeffs)),
	}
}

// Realization returns a fresh Fourier surrogate: the template's amplitude
// spectrum with uniformly random phases. The DC and terminal coefficients
// stay untouched so the inverse transform remains real. Callers still need
// to re-impose seasonality and re-center before use.
func (g *surrogateGenerator) Realization() []float64 {
	copy(g.buf, g.tpl.coeffs)
	last := len(g.buf) - 1
	for k := 1; k < last; k++ {
		phi := 2 * math.Pi * g.rng.Float64()
		g.buf[k] *= cmplx.Exp(complex(0, phi))
	}
	out := g.fft.Sequence(nil, g.buf)
	floats.Scale(1/float64(g.tpl.n), out) // gonum transforms are unnormalized
	return out
}
