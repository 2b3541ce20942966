// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

package rank

// Snapshot is the gob-encodable on-disk representation of a trained Model;
// Model itself keeps its fields unexported so callers can't mutate a head
// after training without going through Train.
type Snapshot struct {
	ScalerMean    []float64
	ScalerStd     []float64
	HasClick      bool
	ClickWeights  []float64
	ClickBias     float64
	RewardWeights map[string][]float64
	RewardBias    map[string]float64
	Trained       bool
}

// Snapshot captures the model's current state for persistence.
func (m *Model) Snapshot() Snapshot {
	s := Snapshot{Trained: m.trained}
	if m.scaler != nil {
		s.ScalerMean = append([]float64{}, m.scaler.Mean...)
		s.ScalerStd = append([]float64{}, m.scaler.Std...)
	}
	if m.click != nil {
		s.HasClick = true
		s.ClickWeights = append([]float64{}, m.click.Weights...)
		s.ClickBias = m.click.Bias
	}
	s.RewardWeights = make(map[string][]float64, len(m.rewardByID))
	s.RewardBias = make(map[string]float64, len(m.rewardByID))
	for obj, head := range m.rewardByID {
		s.RewardWeights[obj] = append([]float64{}, head.Weights...)
		s.RewardBias[obj] = head.Bias
	}
	return s
}

// RestoreModel rebuilds a Model from a persisted Snapshot.
func RestoreModel(s Snapshot) *Model {
	m := NewModel()
	m.trained = s.Trained
	if s.ScalerMean != nil {
		m.scaler = &Scaler{Mean: s.ScalerMean, Std: s.ScalerStd}
	}
	if s.HasClick {
		m.click = &LogisticHead{Weights: s.ClickWeights, Bias: s.ClickBias}
	}
	for obj, w := range s.RewardWeights {
		m.rewardByID[obj] = &RidgeHead{Weights: w, Bias: s.RewardBias[obj]}
	}
	return m
}
