// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"gonum.org/v1/gonum/mat"
)

// TimeSeries is a 1-D monthly-sampled series with its time index.
type TimeSeries struct {
	// Sample values, one per time step
	Values []float64
	// Time index, same length as Values
	Time []float64
	// Name of the variable the series was loaded from
	Name string
}

// SeasonalCycle holds the per-phase mean and standard deviation of a series
// at the sampling seasonality (12 for monthly data). It is extracted before
// the series is centered and re-imposed onto every surrogate realization.
type SeasonalCycle struct {
	Mean   []float64
	Std    []float64
	Period int
}

// SurrogateTemplate is a reusable realization factory bound to the spectral
// characteristics of one prepared (deseasonalized) series. The template
// itself is immutable; workers obtain private generators via NewGenerator.
type SurrogateTemplate struct {
	coeffs []complex128
	n      int
}

// Which bin-based conditional information estimator to use
type binEstimator int

const (
	// Equiquantile histogram estimator
	estimatorEQQ binEstimator = iota
	// Gaussian Granger-causality measure from covariance determinants
	estimatorGCM
)

// estimatorConfig bundles the knobs shared by every estimator invocation.
type estimatorConfig struct {
	// Bin count for the equiquantile estimators
	bins int
	// Neighbor count for the k-nearest-neighbor estimators
	k int
	// Whether KNN searches go through the kd-tree
	dualTree bool
}

// causalityParams drives one lag-averaged causality computation.
type causalityParams struct {
	// Lags 1..maxLag-1 are averaged; maxLag must exceed 1
	maxLag int
	// Bin-based estimator family for the conditional information
	kind binEstimator
	// Dimension of the conditioning set
	condDim int
	// Temporal spacing between conditioning coordinates
	eta int
	// Replace the effect with the wrapped phase difference effect-cause
	phaseDiff bool
}

// EstimatorPair holds one coupling-measure matrix per estimator family.
// Both matrices are square with shape (S, S) for a scale grid of size S.
type EstimatorPair struct {
	EQQ *mat.Dense
	KNN *mat.Dense
}

// MeasurementBundle is the full outcome of one information-grid run: four
// coupling measures, each under two estimators. Cell (i, j) corresponds to
// the ordered scale pair (scales[i], scales[j]). The fixed-arity struct
// replaces runtime length/key assertions with compile-time shape.
type MeasurementBundle struct {
	PhasePhaseCoherence     EstimatorPair
	PhaseAmplitudeMI        EstimatorPair
	PhasePhaseCausality     EstimatorPair
	PhaseAmplitudeCausality EstimatorPair
}

// namedMeasure pairs a coupling measure with its persisted key stem.
type namedMeasure struct {
	name string
	pair EstimatorPair
}

// ResultsContainer validates and persists either one MeasurementBundle
// (observed-data mode) or an ordered collection of them (ensemble mode).
type ResultsContainer struct {
	bundles  []*MeasurementBundle
	ensemble bool
}

// SurrogateCoordinator owns one surrogate-ensemble run: it draws realizations
// from the template, re-imposes the seasonal cycle, runs the information grid
// engine on each realization and collects exactly N bundles.
type SurrogateCoordinator struct {
	Template *SurrogateTemplate
	Cycle    SeasonalCycle
	Scales   []int
	Config   *Config
}
