// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/mathext"
)

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

// almostEqual compares floats with tolerance
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// randomSeries returns n samples from a seeded uniform RNG
func randomSeries(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}

// randomNormalSeries returns n standard-normal samples from a seeded RNG
func randomNormalSeries(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

// ============================================================================
// EQUIQUANTILE BINNING TESTS
// ============================================================================

func TestQuantileBinsBalancedCounts(t *testing.T) {
	x := randomSeries(400, 1)
	bins := 4
	idx := quantileBins(x, bins)

	counts := make([]int, bins)
	for _, b := range idx {
		if b < 0 || b >= bins {
			t.Fatalf("bin index %d out of range [0, %d)", b, bins)
		}
		counts[b]++
	}
	for b, c := range counts {
		// Equiquantile bins on 400 distinct samples stay within a few
		// samples of 100 each.
		if c < 95 || c > 105 {
			t.Errorf("bin %d holds %d samples; want close to 100", b, c)
		}
	}
}

func TestMutualInformationEQQIdenticalSignals(t *testing.T) {
	x := randomSeries(500, 2)
	bins := 4
	mi, err := mutualInformationEQQ(x, x, bins)
	if err != nil {
		t.Fatalf("mutualInformationEQQ failed: %v", err)
	}
	// Identical signals share every bin, so MI equals the marginal entropy,
	// which is ln(bins) for balanced equiquantile bins.
	if !almostEqual(mi, math.Log(float64(bins)), 0.01) {
		t.Errorf("MI(x, x) = %v; want about ln(%d) = %v", mi, bins, math.Log(float64(bins)))
	}
}

func TestMutualInformationEQQIndependentSignals(t *testing.T) {
	a := randomSeries(500, 3)
	b := randomSeries(500, 4)
	mi, err := mutualInformationEQQ(a, b, 4)
	if err != nil {
		t.Fatalf("mutualInformationEQQ failed: %v", err)
	}
	if mi < -1e-9 || mi > 0.1 {
		t.Errorf("MI of independent signals = %v; want small nonnegative", mi)
	}
}

func TestMutualInformationEQQDeterministic(t *testing.T) {
	a := randomSeries(300, 27)
	b := randomSeries(300, 28)
	first, err := mutualInformationEQQ(a, b, 4)
	if err != nil {
		t.Fatalf("mutualInformationEQQ failed: %v", err)
	}
	for trial := 0; trial < 200; trial++ {
		mi, err := mutualInformationEQQ(a, b, 4)
		if err != nil {
			t.Fatalf("trial %d: mutualInformationEQQ failed: %v", trial, err)
		}
		if mi != first {
			t.Fatalf("trial %d: MI = %v differs from first call %v", trial, mi, first)
		}
	}
}

func TestMutualInformationEQQLengthMismatch(t *testing.T) {
	if _, err := mutualInformationEQQ(make([]float64, 10), make([]float64, 11), 4); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

// ============================================================================
// BINNED AND GAUSSIAN CMI TESTS
// ============================================================================

func TestBinnedCMIIndependent(t *testing.T) {
	x := randomSeries(600, 5)
	y := randomSeries(600, 6)
	z := [][]float64{randomSeries(600, 7)}
	cmi, err := condMutualInformation(x, y, z, estimatorEQQ, 4)
	if err != nil {
		t.Fatalf("condMutualInformation failed: %v", err)
	}
	if cmi < -1e-9 || cmi > 0.2 {
		t.Errorf("binned CMI of independent signals = %v; want small nonnegative", cmi)
	}
}

func TestGaussianCMIIndependent(t *testing.T) {
	x := randomNormalSeries(2000, 8)
	y := randomNormalSeries(2000, 9)
	z := [][]float64{randomNormalSeries(2000, 10)}
	cmi, err := condMutualInformation(x, y, z, estimatorGCM, 0)
	if err != nil {
		t.Fatalf("condMutualInformation failed: %v", err)
	}
	// The raw sample estimate may dip slightly below zero.
	if math.Abs(cmi) > 0.05 {
		t.Errorf("Gaussian CMI of independent signals = %v; want near 0", cmi)
	}
}

func TestGaussianCMICoupledSignals(t *testing.T) {
	n := 2000
	x := randomNormalSeries(n, 11)
	noise := randomNormalSeries(n, 12)
	y := make([]float64, n)
	for i := range y {
		y[i] = x[i] + 0.1*noise[i]
	}
	z := [][]float64{randomNormalSeries(n, 13)}
	cmi, err := condMutualInformation(x, y, z, estimatorGCM, 0)
	if err != nil {
		t.Fatalf("condMutualInformation failed: %v", err)
	}
	// I(X;Y|Z) = 0.5*ln(1 + 1/0.01) when Z is irrelevant, about 2.3 nats.
	if cmi < 1 {
		t.Errorf("Gaussian CMI of strongly coupled signals = %v; want > 1", cmi)
	}
}

func TestCondMutualInformationEmptyCondition(t *testing.T) {
	x := randomSeries(50, 14)
	if _, err := condMutualInformation(x, x, nil, estimatorEQQ, 4); err == nil {
		t.Error("expected error for empty conditioning set")
	}
}

// ============================================================================
// KNN ESTIMATOR TESTS
// ============================================================================

func TestKNNMutualInformationIdenticalSignals(t *testing.T) {
	n, k := 300, 16
	x := randomSeries(n, 15)
	for _, useTree := range []bool{false, true} {
		mi, err := knnMutualInformation(x, x, k, useTree)
		if err != nil {
			t.Fatalf("knnMutualInformation(useTree=%v) failed: %v", useTree, err)
		}
		// For perfectly dependent signals the Kraskov estimator collapses
		// to digamma(N) - digamma(k).
		want := mathext.Digamma(float64(n)) - mathext.Digamma(float64(k))
		if !almostEqual(mi, want, 1e-6) {
			t.Errorf("KNN MI(x, x, useTree=%v) = %v; want %v", useTree, mi, want)
		}
	}
}

func TestKNNMutualInformationIndependentSignals(t *testing.T) {
	a := randomSeries(500, 16)
	b := randomSeries(500, 17)
	mi, err := knnMutualInformation(a, b, 16, true)
	if err != nil {
		t.Fatalf("knnMutualInformation failed: %v", err)
	}
	if math.Abs(mi) > 0.1 {
		t.Errorf("KNN MI of independent signals = %v; want near 0", mi)
	}
}

func TestKNNTreeAgreesWithDirectScan(t *testing.T) {
	a := randomSeries(200, 18)
	b := randomSeries(200, 19)
	direct, err := knnMutualInformation(a, b, 8, false)
	if err != nil {
		t.Fatalf("direct scan failed: %v", err)
	}
	tree, err := knnMutualInformation(a, b, 8, true)
	if err != nil {
		t.Fatalf("tree search failed: %v", err)
	}
	if !almostEqual(direct, tree, 1e-9) {
		t.Errorf("tree and direct KNN MI disagree: %v vs %v", tree, direct)
	}
}

func TestKthNeighborDistancesTreeMatchesDirectScan(t *testing.T) {
	a := randomSeries(50, 34)
	b := randomSeries(50, 35)
	pts := make([]chebPoint, len(a))
	for i := range pts {
		pts[i] = chebPoint{a[i], b[i]}
	}

	direct, err := kthNeighborDistances(pts, 4, false)
	if err != nil {
		t.Fatalf("direct scan failed: %v", err)
	}
	tree, err := kthNeighborDistances(pts, 4, true)
	if err != nil {
		t.Fatalf("tree search failed: %v", err)
	}
	for i := range pts {
		if tree[i] <= 0 {
			t.Fatalf("tree distance %d = %v; want positive", i, tree[i])
		}
		if tree[i] != direct[i] {
			t.Fatalf("distance %d differs: tree %v vs direct %v", i, tree[i], direct[i])
		}
	}
}

func TestCountWithin1DMatchesDistancePredicate(t *testing.T) {
	a := randomSeries(100, 36)
	sorted := make([]float64, len(a))
	copy(sorted, a)
	sort.Float64s(sorted)

	for i := range a {
		// Radius from the 5th-nearest sample in 1-D, the same kind of eps the
		// KNN estimators feed in.
		dists := make([]float64, 0, len(a)-1)
		for j := range a {
			if j != i {
				dists = append(dists, math.Abs(a[j]-a[i]))
			}
		}
		sort.Float64s(dists)
		eps := dists[4]

		want := 0
		for j := range a {
			if j != i && math.Abs(a[j]-a[i]) < eps {
				want++
			}
		}
		if got := countWithin1D(sorted, a[i], eps); got != want {
			t.Fatalf("count at %d = %d; want %d", i, got, want)
		}
	}

	if got := countWithin1D(sorted, a[0], 0); got != 0 {
		t.Errorf("count with zero radius = %d; want 0", got)
	}
}

func TestKNNMutualInformationDegenerateSignal(t *testing.T) {
	// All samples coincide, so every neighbor distance is zero; the estimate
	// must stay finite instead of feeding digamma a nonpositive argument.
	x := make([]float64, 50)
	for i := range x {
		x[i] = 1.5
	}
	for _, useTree := range []bool{false, true} {
		mi, err := knnMutualInformation(x, x, 3, useTree)
		if err != nil {
			t.Fatalf("knnMutualInformation(useTree=%v) failed: %v", useTree, err)
		}
		if math.IsNaN(mi) || math.IsInf(mi, 0) {
			t.Errorf("KNN MI of a constant signal (useTree=%v) = %v; want finite", useTree, mi)
		}
	}
}

func TestKNNCondMutualInformationIndependent(t *testing.T) {
	x := randomSeries(400, 20)
	y := randomSeries(400, 21)
	z := [][]float64{randomSeries(400, 22)}
	for _, useTree := range []bool{false, true} {
		cmi, err := knnCondMutualInformation(x, y, z, 8, useTree)
		if err != nil {
			t.Fatalf("knnCondMutualInformation(useTree=%v) failed: %v", useTree, err)
		}
		if math.Abs(cmi) > 0.15 {
			t.Errorf("KNN CMI of independent signals (useTree=%v) = %v; want near 0", useTree, cmi)
		}
	}
}

func TestKNNTooFewSamples(t *testing.T) {
	x := randomSeries(10, 23)
	if _, err := knnMutualInformation(x, x, 10, false); err == nil {
		t.Error("expected error when k+1 exceeds the sample count")
	}
}

// ============================================================================
// LAGGED CONDITION TRIPLE TESTS
// ============================================================================

func TestLaggedConditionTripleShapes(t *testing.T) {
	tests := []struct {
		n, tau, condDim, eta int
		wantLen              int
	}{
		{100, 1, 1, 0, 99},
		{100, 3, 1, 0, 97},
		{100, 2, 3, 5, 88},
		{100, 1, 2, 4, 95},
	}
	master := randomSeries(100, 24)
	slave := randomSeries(100, 25)

	for i, tc := range tests {
		effect, cause, cond, err := laggedConditionTriple(
			master[:tc.n], slave[:tc.n], tc.tau, tc.condDim, tc.eta, false)
		if err != nil {
			t.Fatalf("test %d: laggedConditionTriple failed: %v", i+1, err)
		}
		if len(effect) != tc.wantLen || len(cause) != tc.wantLen {
			t.Errorf("test %d: effect/cause lengths %d/%d; want %d",
				i+1, len(effect), len(cause), tc.wantLen)
		}
		if len(cond) != tc.condDim {
			t.Errorf("test %d: got %d condition dims; want %d", i+1, len(cond), tc.condDim)
		}
		for d, zc := range cond {
			if len(zc) != tc.wantLen {
				t.Errorf("test %d: condition dim %d length %d; want %d",
					i+1, d, len(zc), tc.wantLen)
			}
		}
	}
}

func TestLaggedConditionTripleAlignment(t *testing.T) {
	n := 50
	master := make([]float64, n)
	slave := make([]float64, n)
	for i := range master {
		master[i] = float64(i)
		slave[i] = float64(i) + 1000
	}
	tau, condDim, eta := 2, 3, 4
	effect, cause, cond, err := laggedConditionTriple(master, slave, tau, condDim, eta, false)
	if err != nil {
		t.Fatalf("laggedConditionTriple failed: %v", err)
	}

	offset := (condDim - 1) * eta
	for idx := 0; idx < len(cause); idx++ {
		if cause[idx] != float64(offset+idx) {
			t.Fatalf("cause[%d] = %v; want %v", idx, cause[idx], float64(offset+idx))
		}
		if effect[idx] != float64(offset+idx+tau)+1000 {
			t.Fatalf("effect[%d] = %v; want %v", idx, effect[idx], float64(offset+idx+tau)+1000)
		}
		for d := 0; d < condDim; d++ {
			want := float64(offset+idx-d*eta) + 1000
			if cond[d][idx] != want {
				t.Fatalf("cond[%d][%d] = %v; want %v", d, idx, cond[d][idx], want)
			}
		}
	}
}

func TestLaggedConditionTriplePhaseDiffWrap(t *testing.T) {
	n := 40
	master := make([]float64, n)
	slave := make([]float64, n)
	for i := range master {
		master[i] = -3.0 // near -pi
		slave[i] = 3.0   // near +pi
	}
	effect, _, _, err := laggedConditionTriple(master, slave, 1, 1, 0, true)
	if err != nil {
		t.Fatalf("laggedConditionTriple failed: %v", err)
	}
	for i, w := range effect {
		if w <= -math.Pi || w > math.Pi {
			t.Fatalf("effect[%d] = %v not wrapped into (-pi, pi]", i, w)
		}
		// 3 - (-3) = 6 wraps to 6 - 2*pi
		if !almostEqual(w, 6-2*math.Pi, 1e-12) {
			t.Fatalf("effect[%d] = %v; want %v", i, w, 6-2*math.Pi)
		}
	}
}

func TestLaggedConditionTripleBadInputs(t *testing.T) {
	x := randomSeries(30, 26)
	if _, _, _, err := laggedConditionTriple(x, x, 0, 1, 0, false); err == nil {
		t.Error("expected error for lag < 1")
	}
	if _, _, _, err := laggedConditionTriple(x, x, 1, 0, 0, false); err == nil {
		t.Error("expected error for condition dimension < 1")
	}
	if _, _, _, err := laggedConditionTriple(x, x[:20], 1, 1, 0, false); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if _, _, _, err := laggedConditionTriple(x[:10], x[:10], 8, 1, 0, false); err == nil {
		t.Error("expected error for too few aligned samples")
	}
}
