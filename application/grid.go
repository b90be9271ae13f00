// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

func newEstimatorPair(s int) EstimatorPair {
	return EstimatorPair{EQQ: mat.NewDense(s, s, nil), KNN: mat.NewDense(s, s, nil)}
}

// computeInformationMeasures runs the full information grid: for every
// ordered pair of timescales it decomposes the field at both scales and fills
// one cell of each coupling-measure matrix. The grid is ordered, not
// triangular, because the phase-amplitude and causality measures are
// directional. The outer-scale phase is decomposed once per row; the inner
// scale is recomputed per cell (decomposition is a pure function of field and
// scale, so caching would not change results).
func computeInformationMeasures(field []float64, scales []int, cfg *Config) (*MeasurementBundle, error) {
	if len(scales) == 0 {
		return nil, fmt.Errorf("scale grid is empty")
	}
	for i := 1; i < len(scales); i++ {
		if scales[i] <= scales[i-1] {
			return nil, fmt.Errorf("scale grid must be strictly increasing: %d after %d", scales[i], scales[i-1])
		}
	}

	s := len(scales)
	bundle := &MeasurementBundle{
		PhasePhaseCoherence:     newEstimatorPair(s),
		PhaseAmplitudeMI:        newEstimatorPair(s),
		PhasePhaseCausality:     newEstimatorPair(s),
		PhaseAmplitudeCausality: newEstimatorPair(s),
	}
	est := cfg.estimator()

	for i, scaleI := range scales {
		phaseI, _, err := waveletDecompose(field, scaleI, cfg.EdgeTrim)
		if err != nil {
			return nil, fmt.Errorf("scale %d: %w", scaleI, err)
		}
		trimI := cfg.EdgeTrim * scaleI

		for j, scaleJ := range scales {
			phaseJ, ampJ, err := waveletDecompose(field, scaleJ, cfg.EdgeTrim)
			if err != nil {
				return nil, fmt.Errorf("scale %d: %w", scaleJ, err)
			}
			trimJ := cfg.EdgeTrim * scaleJ

			// Align both decompositions on the common centered window.
			pi := alignToWindow(phaseI, trimI, trimJ)
			pj := alignToWindow(phaseJ, trimJ, trimI)
			aj := alignToWindow(ampJ, trimJ, trimI)

			// Phase-phase coherence
			eqq, err := mutualInformationEQQ(pi, pj, est.bins)
			if err != nil {
				return nil, fmt.Errorf("coherence (%d,%d): %w", scaleI, scaleJ, err)
			}
			knn, err := knnMutualInformation(pi, pj, est.k, est.dualTree)
			if err != nil {
				return nil, fmt.Errorf("coherence (%d,%d): %w", scaleI, scaleJ, err)
			}
			bundle.PhasePhaseCoherence.EQQ.Set(i, j, eqq)
			bundle.PhasePhaseCoherence.KNN.Set(i, j, knn)

			// Phase-amplitude mutual information
			eqq, err = mutualInformationEQQ(pi, aj, est.bins)
			if err != nil {
				return nil, fmt.Errorf("phase-amp MI (%d,%d): %w", scaleI, scaleJ, err)
			}
			knn, err = knnMutualInformation(pi, aj, est.k, est.dualTree)
			if err != nil {
				return nil, fmt.Errorf("phase-amp MI (%d,%d): %w", scaleI, scaleJ, err)
			}
			bundle.PhaseAmplitudeMI.EQQ.Set(i, j, eqq)
			bundle.PhaseAmplitudeMI.KNN.Set(i, j, knn)

			// Phase-phase causality on the wrapped phase difference
			eqq, knn, err = lagAveragedCausality(pi, pj, causalityParams{
				maxLag:    cfg.MaxLag,
				kind:      estimatorEQQ,
				condDim:   1,
				eta:       0,
				phaseDiff: true,
			}, est)
			if err != nil {
				return nil, fmt.Errorf("phase-phase causality (%d,%d): %w", scaleI, scaleJ, err)
			}
			bundle.PhasePhaseCausality.EQQ.Set(i, j, eqq)
			bundle.PhasePhaseCausality.KNN.Set(i, j, knn)

			// Phase-amplitude causality on the squared amplitude, conditioned
			// on three coordinates of amplitude history spaced scale_i/4.
			amp2 := make([]float64, len(aj))
			for t, v := range aj {
				amp2[t] = v * v
			}
			eqq, knn, err = lagAveragedCausality(pi, amp2, causalityParams{
				maxLag:    cfg.MaxLag,
				kind:      estimatorGCM,
				condDim:   3,
				eta:       scaleI / 4,
				phaseDiff: false,
			}, est)
			if err != nil {
				return nil, fmt.Errorf("phase-amp causality (%d,%d): %w", scaleI, scaleJ, err)
			}
			bundle.PhaseAmplitudeCausality.EQQ.Set(i, j, eqq)
			bundle.PhaseAmplitudeCausality.KNN.Set(i, j, knn)
		}
	}

	return bundle, nil
}
