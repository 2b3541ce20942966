// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package rank

import "math"

// identityMatrix returns the n x n identity matrix.
func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1.0
	}
	return m
}

// invertMatrix computes the inverse of a via Gauss-Jordan elimination with
// partial pivoting, regularizing a near-singular pivot rather than failing.
func invertMatrix(a [][]float64) [][]float64 {
	n := len(a)
	if n == 0 {
		return nil
	}

	augmented := make([][]float64, n)
	for i := range augmented {
		augmented[i] = make([]float64, 2*n)
		copy(augmented[i], a[i])
		augmented[i][n+i] = 1.0
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(augmented[k][i]) > math.Abs(augmented[maxRow][i]) {
				maxRow = k
			}
		}
		augmented[i], augmented[maxRow] = augmented[maxRow], augmented[i]

		if math.Abs(augmented[i][i]) < 1e-10 {
			augmented[i][i] = 1e-10
		}

		for k := i + 1; k < n; k++ {
			factor := augmented[k][i] / augmented[i][i]
			for j := i; j < 2*n; j++ {
				augmented[k][j] -= factor * augmented[i][j]
			}
		}
	}

	for i := n - 1; i >= 0; i-- {
		pivot := augmented[i][i]
		for j := i; j < 2*n; j++ {
			augmented[i][j] /= pivot
		}
		for k := 0; k < i; k++ {
			factor := augmented[k][i]
			for j := i; j < 2*n; j++ {
				augmented[k][j] -= factor * augmented[i][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
		copy(inv[i], augmented[i][n:])
	}
	return inv
}

func matMulTranspose(a [][]float64) [][]float64 {
	rows := len(a)
	if rows == 0 {
		return nil
	}
	cols := len(a[0])
	out := make([][]float64, cols)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	for i := 0; i < cols; i++ {
		for j := 0; j < cols; j++ {
			var sum float64
			for r := 0; r < rows; r++ {
				sum += a[r][i] * a[r][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func matTransposeVec(a [][]float64, y []float64) []float64 {
	if len(a) == 0 {
		return nil
	}
	cols := len(a[0])
	out := make([]float64, cols)
	for i := 0; i < cols; i++ {
		var sum float64
		for r := range a {
			sum += a[r][i] * y[r]
		}
		out[i] = sum
	}
	return out
}

func matVecMul(m [][]float64, v []float64) []float64 {
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
