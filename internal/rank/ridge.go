// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package rank

// ridgeL2 is the fixed L2 regularization strength for reward heads.
const ridgeL2 = 1.0

// RidgeHead is a ridge-regularized linear regressor used for per-objective
// reward prediction, per §4.6.
type RidgeHead struct {
	Weights []float64
	Bias    float64
}

// TrainRidge fits a ridge regressor by the closed-form normal equations
// w = (X^T X + L2 I)^-1 X^T y, with the bias folded in as a constant
// feature column.
func TrainRidge(x [][]float64, y []float64) *RidgeHead {
	if len(x) == 0 {
		return nil
	}
	dim := len(x[0])

	augmented := make([][]float64, len(x))
	for i, row := range x {
		augmented[i] = append(append([]float64{}, row...), 1.0)
	}

	xtx := matMulTranspose(augmented)
	reg := identityMatrix(dim + 1)
	for i := range reg {
		reg[i][i] = ridgeL2
	}
	// Do not regularize the bias term.
	reg[dim][dim] = 0
	for i := range xtx {
		for j := range xtx[i] {
			xtx[i][j] += reg[i][j]
		}
	}

	xty := matTransposeVec(augmented, y)
	inv := invertMatrix(xtx)
	w := matVecMul(inv, xty)

	return &RidgeHead{Weights: w[:dim], Bias: w[dim]}
}

// Predict returns the ridge head's raw prediction for a standardized
// feature row.
func (h *RidgeHead) Predict(row []float64) float64 {
	var sum float64
	for i, w := range h.Weights {
		if i >= len(row) {
			break
		}
		sum += w * row[i]
	}
	return sum + h.Bias
}

// clampReward bounds a predicted reward to the valid rating range.
func clampReward(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}
