// Project: Multi-scale CMI coupling map of a single geophysical time series
// with Fourier-surrogate significance testing.

package main

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"
)

// ----------------------------------------------------------------------------
// Equiquantile binning
// ----------------------------------------------------------------------------

// quantileBins assigns each sample to one of bins equal-quantile bins.
// A value equal to a bin edge goes to the upper bin.
func quantileBins(x []float64, bins int) []int {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	edges := make([]float64, bins-1)
	for i := 1; i < bins; i++ {
		edges[i-1] = stat.Quantile(float64(i)/float64(bins), stat.Empirical, sorted, nil)
	}

	idx := make([]int, len(x))
	for t, v := range x {
		b := sort.SearchFloat64s(edges, v)
		// SearchFloat64s returns the count of edges < v plus edges == v
		// landing left; move boundary values up.
		for b < len(edges) && edges[b] == v {
			b++
		}
		if b > bins-1 {
			b = bins - 1
		}
		idx[t] = b
	}
	return idx
}

// jointEntropy computes the entropy (nats) of the joint distribution of the
// given bin-index columns.
func jointEntropy(cols [][]int, bins, n int) float64 {
	size := 1
	for range cols {
		size *= bins
	}
	counts := make([]int, size)
	for t := 0; t < n; t++ {
		key := 0
		for _, c := range cols {
			key = key*bins + c[t]
		}
		counts[key]++
	}
	// Accumulate in index order; map iteration would reorder the float sum
	// and identical inputs could differ in the last ulp.
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(n)
		h -= p * math.Log(p)
	}
	return h
}

// mutualInformationEQQ estimates I(A;B) in nats from an equiquantile 2-D
// histogram with the given bin count.
func mutualInformationEQQ(a, b []float64, bins int) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("signal lengths differ: %d vs %d", len(a), len(b))
	}
	n := len(a)
	if n < bins {
		return 0, fmt.Errorf("need at least %d samples for %d bins, got %d", bins, bins, n)
	}
	ia := quantileBins(a, bins)
	ib := quantileBins(b, bins)

	ha := jointEntropy([][]int{ia}, bins, n)
	hb := jointEntropy([][]int{ib}, bins, n)
	hab := jointEntropy([][]int{ia, ib}, bins, n)
	return ha + hb - hab, nil
}

// condMutualInformation estimates I(X;Y|Z) in nats with the requested
// bin-based estimator family. z holds one slice per conditioning dimension.
func condMutualInformation(x, y []float64, z [][]float64, kind binEstimator, bins int) (float64, error) {
	n := len(x)
	if len(y) != n {
		return 0, fmt.Errorf("signal lengths differ: %d vs %d", n, len(y))
	}
	if len(z) == 0 {
		return 0, fmt.Errorf("conditioning set is empty")
	}
	for d, zc := range z {
		if len(zc) != n {
			return 0, fmt.Errorf("condition dim %d length %d != %d", d, len(zc), n)
		}
	}

	switch kind {
	case estimatorEQQ:
		return binnedCMI(x, y, z, bins)
	case estimatorGCM:
		return gaussianCMI(x, y, z), nil
	default:
		return 0, fmt.Errorf("unknown bin estimator kind %d", kind)
	}
}

// binnedCMI computes I(X;Y|Z) = H(XZ) + H(YZ) - H(Z) - H(XYZ) from
// equiquantile histograms.
func binnedCMI(x, y []float64, z [][]float64, bins int) (float64, error) {
	n := len(x)
	if n < bins {
		return 0, fmt.Errorf("need at least %d samples for %d bins, got %d", bins, bins, n)
	}
	ix := quantileBins(x, bins)
	iy := quantileBins(y, bins)
	iz := make([][]int, len(z))
	for d := range z {
		iz[d] = quantileBins(z[d], bins)
	}

	xz := append([][]int{ix}, iz...)
	yz := append([][]int{iy}, iz...)
	xyz := append([][]int{ix, iy}, iz...)

	cmi := jointEntropy(xz, bins, n) + jointEntropy(yz, bins, n) -
		jointEntropy(iz, bins, n) - jointEntropy(xyz, bins, n)
	return cmi, nil
}

// gaussianCMI is the linear Granger-style conditional information
// 0.5 * ln( det(C_xz) det(C_yz) / (det(C_z) det(C_xyz)) )
// from sample covariance matrices. The raw sample value is reported; it can
// dip slightly below zero for finite samples. Degenerate covariances clamp
// to zero.
func gaussianCMI(x, y []float64, z [][]float64) float64 {
	ldXZ := covLogDet(append([][]float64{x}, z...))
	ldYZ := covLogDet(append([][]float64{y}, z...))
	ldZ := covLogDet(z)
	ldXYZ := covLogDet(append([][]float64{x, y}, z...))

	v := 0.5 * (ldXZ + ldYZ - ldZ - ldXYZ)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// covLogDet returns the log-determinant of the sample covariance matrix of
// the given columns, or NaN when it is not positive definite.
func covLogDet(cols [][]float64) float64 {
	n := len(cols[0])
	d := len(cols)
	m := mat.NewDense(n, d, nil)
	for j, c := range cols {
		for i, v := range c {
			m.Set(i, j, v)
		}
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, m, nil)
	ld, sign := mat.LogDet(&cov)
	if sign <= 0 {
		return math.NaN()
	}
	return ld
}

// ----------------------------------------------------------------------------
// K-nearest-neighbor estimators (Chebyshev metric)
// ----------------------------------------------------------------------------

// chebPoint is a point in R^d under the Chebyshev (maximum) metric. Distance
// returns the squared Chebyshev distance so the kd-tree's plane-pruning
// comparison against squared axis offsets stays valid.
type chebPoint []float64

func (p chebPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(chebPoint)
	return p[d] - q[d]
}

func (p chebPoint) Dims() int { return len(p) }

func (p chebPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(chebPoint)
	var max float64
	for i := range p {
		d := math.Abs(p[i] - q[i])
		if d > max {
			max = d
		}
	}
	return max * max
}

// chebPoints implements kdtree.Interface for a set of chebPoint.
type chebPoints []chebPoint

func (p chebPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p chebPoints) Len() int                      { return len(p) }
func (p chebPoints) Pivot(d kdtree.Dim) int {
	return chebPlane{chebPoints: p, Dim: d}.Pivot()
}
func (p chebPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// chebPlane sorts chebPoints along one dimension for tree construction.
type chebPlane struct {
	kdtree.Dim
	chebPoints
}

func (p chebPlane) Less(i, j int) bool {
	return p.chebPoints[i][p.Dim] < p.chebPoints[j][p.Dim]
}
func (p chebPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
func (p chebPlane) Slice(start, end int) kdtree.SortSlicer {
	p.chebPoints = p.chebPoints[start:end]
	return p
}
func (p chebPlane) Swap(i, j int) {
	p.chebPoints[i], p.chebPoints[j] = p.chebPoints[j], p.chebPoints[i]
}

func chebDistance(a, b chebPoint) float64 {
	var max float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > max {
			max = d
		}
	}
	return max
}

// kthNeighborDistances returns, for every point, the Chebyshev distance to
// its k-th nearest neighbor (self excluded). With useTree the search runs
// through a kd-tree, otherwise it is a direct scan.
func kthNeighborDistances(pts []chebPoint, k int, useTree bool) ([]float64, error) {
	n := len(pts)
	if k+1 > n {
		return nil, fmt.Errorf("k=%d needs at least %d samples, got %d", k, k+1, n)
	}
	eps := make([]float64, n)

	if useTree {
		// Tree construction reorders its input; hand it a copy.
		data := make(chebPoints, n)
		copy(data, pts)
		tree := kdtree.New(data, false)
		for i, p := range pts {
			// k+1 keeps the query point itself at distance zero.
			keep := kdtree.NewNKeeper(k + 1)
			tree.NearestSet(keep, p)
			// NearestSet hands the keeper back sorted by increasing distance
			// with the sentinel removed, so the k-th neighbor is the last
			// element. Recompute its distance exactly; the heap holds squared
			// distances and sqrt would round off by an ulp, flipping
			// strict-inequality counts at the boundary.
			far := keep.Heap[len(keep.Heap)-1].Comparable.(chebPoint)
			eps[i] = chebDistance(p, far)
		}
		return eps, nil
	}

	dists := make([]float64, 0, n-1)
	for i, p := range pts {
		dists = dists[:0]
		for j, q := range pts {
			if j == i {
				continue
			}
			dists = append(dists, chebDistance(p, q))
		}
		sort.Float64s(dists)
		eps[i] = dists[k-1]
	}
	return eps, nil
}

// countWithin1D counts samples with |a-v| < eps, self excluded. The window
// edges found by binary search are re-checked against the exact predicate:
// v-eps and v+eps round, and a boundary sample flipping in or out of the
// window would disagree with the Chebyshev comparison in the joint space.
func countWithin1D(sorted []float64, v, eps float64) int {
	lo := sort.Search(len(sorted), func(j int) bool { return sorted[j] > v-eps })
	hi := sort.Search(len(sorted), func(j int) bool { return sorted[j] >= v+eps })
	if hi < lo {
		// A tiny or zero radius over duplicated values can cross the bounds.
		hi = lo
	}
	for lo > 0 && math.Abs(sorted[lo-1]-v) < eps {
		lo--
	}
	for lo < hi && !(math.Abs(sorted[lo]-v) < eps) {
		lo++
	}
	for hi < len(sorted) && math.Abs(sorted[hi]-v) < eps {
		hi++
	}
	for hi > lo && !(math.Abs(sorted[hi-1]-v) < eps) {
		hi--
	}
	n := hi - lo
	if n > 0 {
		// The query sample itself sits in the window whenever eps > 0.
		n--
	}
	return n
}

// countWithinCheb counts points with Chebyshev distance strictly below eps
// from pts[i], self excluded.
func countWithinCheb(pts []chebPoint, i int, eps float64) int {
	n := 0
	for j := range pts {
		if j == i {
			continue
		}
		if chebDistance(pts[i], pts[j]) < eps {
			n++
		}
	}
	return n
}

// knnMutualInformation estimates I(A;B) in nats with the Kraskov
// nearest-neighbor estimator (algorithm 1).
func knnMutualInformation(a, b []float64, k int, useTree bool) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("signal lengths differ: %d vs %d", len(a), len(b))
	}
	n := len(a)

	joint := make([]chebPoint, n)
	for i := range joint {
		joint[i] = chebPoint{a[i], b[i]}
	}
	eps, err := kthNeighborDistances(joint, k, useTree)
	if err != nil {
		return 0, err
	}

	sa := make([]float64, n)
	copy(sa, a)
	sort.Float64s(sa)
	sb := make([]float64, n)
	copy(sb, b)
	sort.Float64s(sb)

	sum := 0.0
	for i := 0; i < n; i++ {
		nx := countWithin1D(sa, a[i], eps[i])
		ny := countWithin1D(sb, b[i], eps[i])
		sum += mathext.Digamma(float64(nx+1)) + mathext.Digamma(float64(ny+1))
	}
	return mathext.Digamma(float64(k)) + mathext.Digamma(float64(n)) - sum/float64(n), nil
}

// knnCondMutualInformation estimates I(X;Y|Z) in nats with the
// Frenzel-Pommerenke nearest-neighbor estimator.
func knnCondMutualInformation(x, y []float64, z [][]float64, k int, useTree bool) (float64, error) {
	n := len(x)
	if len(y) != n {
		return 0, fmt.Errorf("signal lengths differ: %d vs %d", n, len(y))
	}
	if len(z) == 0 {
		return 0, fmt.Errorf("conditioning set is empty")
	}
	for d, zc := range z {
		if len(zc) != n {
			return 0, fmt.Errorf("condition dim %d length %d != %d", d, len(zc), n)
		}
	}

	dz := len(z)
	joint := make([]chebPoint, n)
	xzPts := make([]chebPoint, n)
	yzPts := make([]chebPoint, n)
	zPts := make([]chebPoint, n)
	for i := 0; i < n; i++ {
		jp := make(chebPoint, 2+dz)
		jp[0] = x[i]
		jp[1] = y[i]
		xz := make(chebPoint, 1+dz)
		xz[0] = x[i]
		yz := make(chebPoint, 1+dz)
		yz[0] = y[i]
		zp := make(chebPoint, dz)
		for d := 0; d < dz; d++ {
			jp[2+d] = z[d][i]
			xz[1+d] = z[d][i]
			yz[1+d] = z[d][i]
			zp[d] = z[d][i]
		}
		joint[i] = jp
		xzPts[i] = xz
		yzPts[i] = yz
		zPts[i] = zp
	}

	eps, err := kthNeighborDistances(joint, k, useTree)
	if err != nil {
		return 0, err
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		nxz := countWithinCheb(xzPts, i, eps[i])
		nyz := countWithinCheb(yzPts, i, eps[i])
		nz := countWithinCheb(zPts, i, eps[i])
		sum += mathext.Digamma(float64(nxz+1)) + mathext.Digamma(float64(nyz+1)) -
			mathext.Digamma(float64(nz+1))
	}
	return mathext.Digamma(float64(k)) - sum/float64(n), nil
}

// ----------------------------------------------------------------------------
// Lagged condition triples
// ----------------------------------------------------------------------------

// Fewest aligned samples a lagged triple may keep
const minTripleLen = 8

// laggedConditionTriple builds the (effect, cause, condition-set) triple for
// a causality computation at lag tau. The cause is the master series in the
// present, the effect is the slave series tau steps ahead, and the condition
// is condDim coordinates of the slave's history spaced eta steps apart. With
// phaseDiff the effect becomes the phase difference effect-cause wrapped to
// (-pi, pi].
func laggedConditionTriple(master, slave []float64, tau, condDim, eta int, phaseDiff bool) (effect, cause []float64, cond [][]float64, err error) {
	if len(master) != len(slave) {
		return nil, nil, nil, fmt.Errorf("signal lengths differ: %d vs %d", len(master), len(slave))
	}
	if tau < 1 {
		return nil, nil, nil, fmt.Errorf("lag must be >= 1, got %d", tau)
	}
	if condDim < 1 {
		return nil, nil, nil, fmt.Errorf("condition dimension must be >= 1, got %d", condDim)
	}
	if condDim > 1 && eta < 1 {
		// Zero spacing would duplicate condition coordinates and make the
		// Gaussian estimator singular.
		eta = 1
	}

	offset := (condDim - 1) * eta
	n := len(master) - tau - offset
	if n < minTripleLen {
		return nil, nil, nil, fmt.Errorf(
			"series too short for lag %d with %d condition dims spaced %d: %d samples left",
			tau, condDim, eta, n,
		)
	}

	cause = master[offset : offset+n]
	effect = slave[offset+tau : offset+tau+n]
	cond = make([][]float64, condDim)
	for i := 0; i < condDim; i++ {
		cond[i] = slave[offset-i*eta : offset-i*eta+n]
	}

	if phaseDiff {
		diff := make([]float64, n)
		for t := range diff {
			w := effect[t] - cause[t]
			for w <= -math.Pi {
				w += 2 * math.Pi
			}
			for w > math.Pi {
				w -= 2 * math.Pi
			}
			diff[t] = w
		}
		effect = diff
	}
	return effect, cause, cond, nil
}
