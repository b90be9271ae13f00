// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Persisted key stems, in the fixed measure order.
var measureNames = [4]string{
	"phase_phase_coherence",
	"phase_amplitude_mi",
	"phase_phase_causality",
	"phase_amplitude_causality",
}

// Persisted estimator suffixes.
var estimatorNames = [2]string{"eqq", "knn"}

// orderedMeasures returns the four coupling measures in persisted order.
func (b *MeasurementBundle) orderedMeasures() []namedMeasure {
	return []namedMeasure{
		{measureNames[0], b.PhasePhaseCoherence},
		{measureNames[1], b.PhaseAmplitudeMI},
		{measureNames[2], b.PhasePhaseCausality},
		{measureNames[3], b.PhaseAmplitudeCausality},
	}
}

// validate checks the shape contract of one bundle: all eight matrices
// present, square, and of one common shape. Returns the common size.
func (b *MeasurementBundle) validate() (int, error) {
	if b == nil {
		return 0, fmt.Errorf("bundle is nil")
	}
	size := -1
	for _, m := range b.orderedMeasures() {
		for e, mx := range map[string]*mat.Dense{"eqq": m.pair.EQQ, "knn": m.pair.KNN} {
			if mx == nil {
				return 0, fmt.Errorf("%s_%s: matrix is missing", m.name, e)
			}
			r, c := mx.Dims()
			if r != c {
				return 0, fmt.Errorf("%s_%s: matrix is %dx%d, want square", m.name, e, r, c)
			}
			if size == -1 {
				size = r
			} else if r != size {
				return 0, fmt.Errorf("%s_%s: matrix is %dx%d, want %dx%d", m.name, e, r, c, size, size)
			}
		}
	}
	return size, nil
}

// NewResultsContainer wraps one observed-data bundle, failing fast on any
// shape violation.
func NewResultsContainer(bundle *MeasurementBundle) (*ResultsContainer, error) {
	if _, err := bundle.validate(); err != nil {
		return nil, fmt.Errorf("invalid result bundle: %w", err)
	}
	return &ResultsContainer{bundles: []*MeasurementBundle{bundle}}, nil
}

// NewEnsembleResultsContainer wraps an ordered surrogate ensemble. Every
// bundle must pass the same validation and share one matrix shape; nothing is
// accepted partially.
func NewEnsembleResultsContainer(bundles []*MeasurementBundle) (*ResultsContainer, error) {
	size := -1
	for i, b := range bundles {
		s, err := b.validate()
		if err != nil {
			return nil, fmt.Errorf("invalid surrogate bundle %d: %w", i, err)
		}
		if size == -1 {
			size = s
		} else if s != size {
			return nil, fmt.Errorf("surrogate bundle %d is %dx%d, want %dx%d", i, s, s, size, size)
		}
	}
	fmt.Printf("Found %d surrogate results\n", len(bundles))
	return &ResultsContainer{bundles: bundles, ensemble: true}, nil
}

// matrixRows copies a matrix into row-major nested slices.
func matrixRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		copy(row, m.RawRowView(i))
		out[i] = row
	}
	return out
}

// stackMatrices stacks same-shaped matrices along a new trailing axis,
// producing shape (S, S, N) with out[i][j][k] = ms[k].At(i, j).
func stackMatrices(ms []*mat.Dense) [][][]float64 {
	if len(ms) == 0 {
		return nil
	}
	r, c := ms[0].Dims()
	out := make([][][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([][]float64, c)
		for j := 0; j < c; j++ {
			cell := make([]float64, len(ms))
			for k, m := range ms {
				cell[k] = m.At(i, j)
			}
			out[i][j] = cell
		}
	}
	return out
}

// flatten produces the persisted mapping: one "<measure>_<estimator>" key per
// matrix, 2-D arrays for a single bundle and (S, S, N)-stacked arrays for an
// ensemble.
func (rc *ResultsContainer) flatten() map[string]interface{} {
	saving := make(map[string]interface{}, 8)

	if !rc.ensemble {
		for _, m := range rc.bundles[0].orderedMeasures() {
			saving[m.name+"_"+estimatorNames[0]] = matrixRows(m.pair.EQQ)
			saving[m.name+"_"+estimatorNames[1]] = matrixRows(m.pair.KNN)
		}
		return saving
	}

	for mi, name := range measureNames {
		for ei, est := range estimatorNames {
			ms := make([]*mat.Dense, len(rc.bundles))
			for k, b := range rc.bundles {
				pair := b.orderedMeasures()[mi].pair
				if ei == 0 {
					ms[k] = pair.EQQ
				} else {
					ms[k] = pair.KNN
				}
			}
			saving[name+"_"+est] = stackMatrices(ms)
		}
	}
	return saving
}

// Save serializes the flattened mapping to one JSON file. This is the only
// I/O the container performs.
func (rc *ResultsContainer) Save(path string) error {
	data, err := json.Marshal(rc.flatten())
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	fmt.Printf("Saving done to %s\n", path)
	return nil
}
