// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package embedding

import "math"

// powerIterationIters bounds the number of power-iteration steps used to
// extract each principal component; the sequence converges quickly for
// the low-dimensional embeddings this fuser projects.
const powerIterationIters = 100

// projection is a learned linear map from a type's native dimension down
// to at most outputDim components, represented as one row per output
// component.
type projection struct {
	rows   [][]float64
	inDim  int
	outDim int
}

// project applies the projection to vec, right-padding with zeros if the
// projection has fewer rows than outDim (rank-deficient fit).
func (p projection) project(vec []float64) []float64 {
	out := make([]float64, p.outDim)
	for i, row := range p.rows {
		if i >= p.outDim {
			break
		}
		var sum float64
		n := len(row)
		if len(vec) < n {
			n = len(vec)
		}
		for j := 0; j < n; j++ {
			sum += row[j] * vec[j]
		}
		out[i] = sum
	}
	return out
}

// Fuser projects an open-ended set of per-content embedding types down to
// a single fixed-dimensional vector, per §4.5.
type Fuser struct {
	outputDim   int
	projections map[string]projection
	weights     map[string]float64
	fitted      bool
}

// NewFuser returns an unfitted Fuser with the given output dimension.
func NewFuser(outputDim int) *Fuser {
	return &Fuser{outputDim: outputDim, projections: map[string]projection{}, weights: map[string]float64{}}
}

// Fitted reports whether Fit has been called successfully.
func (f *Fuser) Fitted() bool { return f.fitted }

// Fit learns a per-type PCA projection and frequency-weighted importance
// from the observed training vectors, keyed by embedding type.
func (f *Fuser) Fit(vectorsByType map[string][][]float32) {
	if len(vectorsByType) == 0 {
		return
	}

	total := 0
	for _, vecs := range vectorsByType {
		total += len(vecs)
	}
	if total == 0 {
		return
	}

	projections := make(map[string]projection, len(vectorsByType))
	weights := make(map[string]float64, len(vectorsByType))
	for typ, vecs := range vectorsByType {
		if len(vecs) == 0 {
			continue
		}
		projections[typ] = fitPCA(vecs, f.outputDim)
		weights[typ] = float64(len(vecs)) / float64(total)
	}

	f.projections = projections
	f.weights = weights
	f.fitted = true
}

// Transform fuses the present embeddings into a single output_dim vector,
// per §4.5's transform contract.
func (f *Fuser) Transform(embeddingsByType map[string][]float32) []float32 {
	if !f.fitted {
		for _, vec := range embeddingsByType {
			return padOrTruncate(vec, f.outputDim)
		}
		return make([]float32, f.outputDim)
	}

	var presentWeight float64
	present := make(map[string][]float64, len(embeddingsByType))
	for typ, vec := range embeddingsByType {
		if _, known := f.projections[typ]; !known {
			continue
		}
		present[typ] = toFloat64(vec)
		presentWeight += f.weights[typ]
	}
	if len(present) == 0 || presentWeight == 0 {
		return make([]float32, f.outputDim)
	}

	sum := make([]float64, f.outputDim)
	for typ, vec := range present {
		proj := f.projections[typ].project(vec)
		w := f.weights[typ] / presentWeight
		for i := range sum {
			sum[i] += w * proj[i]
		}
	}
	return toFloat32(sum)
}

func padOrTruncate(vec []float32, dim int) []float32 {
	out := make([]float32, dim)
	n := len(vec)
	if n > dim {
		n = dim
	}
	copy(out, vec[:n])
	return out
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}

// fitPCA learns a projection to at most outputDim components via power
// iteration with deflation over the sample covariance matrix. When the
// data has fewer independent directions than outputDim (rank-deficient,
// or fewer training vectors than outputDim), the projection simply has
// fewer rows; project() right-pads the result with zeros, which is the
// documented degradation for that case rather than an error.
func fitPCA(vectors [][]float32, outputDim int) projection {
	dim := len(vectors[0])
	mean := make([]float64, dim)
	data := make([][]float64, len(vectors))
	for i, v := range vectors {
		data[i] = toFloat64(v)
		for j := 0; j < dim && j < len(v); j++ {
			mean[j] += float64(v[j])
		}
	}
	for j := range mean {
		mean[j] /= float64(len(vectors))
	}
	for i := range data {
		for j := range data[i] {
			data[i][j] -= mean[j]
		}
	}

	cov := covarianceMatrix(data, dim)

	maxComponents := outputDim
	if len(vectors)-1 < maxComponents {
		maxComponents = len(vectors) - 1
	}
	if dim < maxComponents {
		maxComponents = dim
	}
	if maxComponents < 0 {
		maxComponents = 0
	}

	rows := make([][]float64, 0, maxComponents)
	for c := 0; c < maxComponents; c++ {
		vec, eigenvalue := powerIterationTopEigenvector(cov)
		if eigenvalue <= 1e-12 {
			break
		}
		rows = append(rows, vec)
		deflate(cov, vec, eigenvalue)
	}

	return projection{rows: rows, inDim: dim, outDim: outputDim}
}

func covarianceMatrix(centered [][]float64, dim int) [][]float64 {
	cov := make([][]float64, dim)
	for i := range cov {
		cov[i] = make([]float64, dim)
	}
	n := float64(len(centered))
	if n == 0 {
		return cov
	}
	for _, row := range centered {
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				cov[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			cov[i][j] /= n
			cov[j][i] = cov[i][j]
		}
	}
	return cov
}

func powerIterationTopEigenvector(m [][]float64) ([]float64, float64) {
	n := len(m)
	if n == 0 {
		return nil, 0
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = 1.0 / math.Sqrt(float64(n))
	}

	var eigenvalue float64
	for iter := 0; iter < powerIterationIters; iter++ {
		next := matVec(m, v)
		norm := vecNorm(next)
		if norm < 1e-12 {
			return v, 0
		}
		for i := range next {
			next[i] /= norm
		}
		v = next
		eigenvalue = norm
	}
	return v, eigenvalue
}

// deflate removes the contribution of eigenvector v (with eigenvalue
// lambda) from m in place, so the next power iteration converges to the
// next-largest eigenvector.
func deflate(m [][]float64, v []float64, lambda float64) {
	for i := range m {
		for j := range m[i] {
			m[i][j] -= lambda * v[i] * v[j]
		}
	}
}

func matVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var sum float64
		for j, x := range row {
			sum += x * v[j]
		}
		out[i] = sum
	}
	return out
}

func vecNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
