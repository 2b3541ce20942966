// omnifeed - Adaptive Content Discovery and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/omnifeed

// Package rank implements the multi-head ranking model of §4.6: a click
// head, per-objective reward heads, feature standardization, and the
// out-of-distribution guard that falls back to source priors rather than
// trusting an extrapolating model.
package rank

import "github.com/tomtom215/omnifeed/internal/store"

// oodThreshold is the scaled-feature magnitude above which the reward head
// is bypassed in favor of the source's prior.
const oodThreshold = 10.0

// coldStartReward is used when no source stats and no reward head apply.
const coldStartReward = 2.5

// TrainingExample is one labeled row for Model.Train.
type TrainingExample struct {
	Content   *store.Content
	Fused     []float32
	Stats     store.SourceStats
	Engaged   bool
	HasReward bool
	Reward    float64
	// Objectives is selections["reward_type"] for this example; empty
	// means the example does not contribute to any objective head.
	Objectives []string
}

// Model is a trained (or untrained) ranking model.
type Model struct {
	scaler     *Scaler
	click      *LogisticHead
	rewardByID map[string]*RidgeHead
	trained    bool
}

// NewModel returns an untrained Model.
func NewModel() *Model {
	return &Model{rewardByID: map[string]*RidgeHead{}}
}

// Trained reports whether Train has produced a usable model.
func (m *Model) Trained() bool { return m.trained }

// Train fits the scaler, click head, and per-objective reward heads from
// labeled examples, per §4.6.
func (m *Model) Train(examples []TrainingExample) {
	if len(examples) == 0 {
		return
	}

	rows := make([][]float64, len(examples))
	for i, ex := range examples {
		rows[i] = Features(ex.Content, ex.Fused, ex.Stats)
	}
	scaler := FitScaler(rows)

	scaledRows := make([][]float64, len(rows))
	clickLabels := make([]float64, len(rows))
	for i, row := range rows {
		scaledRows[i] = scaler.Transform(row)
		if examples[i].Engaged {
			clickLabels[i] = 1.0
		}
	}

	rewardHeads := make(map[string]*RidgeHead, len(Objectives))
	for _, obj := range Objectives {
		var objRows [][]float64
		var objLabels []float64
		positives := 0
		for i, ex := range examples {
			if !ex.HasReward {
				continue
			}
			label := 0.0
			if containsString(ex.Objectives, obj) {
				label = ex.Reward
				positives++
			}
			objRows = append(objRows, scaledRows[i])
			objLabels = append(objLabels, label)
		}
		if positives == 0 {
			continue
		}
		if head := TrainRidge(objRows, objLabels); head != nil {
			rewardHeads[obj] = head
		}
	}

	m.scaler = scaler
	m.click = TrainLogistic(scaledRows, clickLabels)
	m.rewardByID = rewardHeads
	m.trained = true
}

// Score is the result of scoring a content item against the model.
type Score struct {
	ClickProb float64
	Reward    float64
	Combined  float64
}

// Score implements the §4.6 scoring contract for a single content item,
// optionally targeting one objective; an empty objective averages the mean
// of all present objective rewards.
func (m *Model) Score(c *store.Content, fused []float32, stats store.SourceStats, objective string) Score {
	if !m.trained || len(fused) == 0 {
		reward := fallbackReward(stats)
		return Score{ClickProb: 0.5, Reward: reward, Combined: reward}
	}

	row := Features(c, fused, stats)
	scaled := m.scaler.Transform(row)

	clickProb := 0.5
	hasClick := m.click != nil
	if hasClick {
		clickProb = m.click.Predict(scaled)
	}

	var reward float64
	if maxAbs(scaled) > oodThreshold {
		reward = fallbackReward(stats)
	} else {
		reward = m.rewardFor(scaled, objective, stats)
	}

	combined := reward
	if hasClick {
		combined = clickProb * reward
	}
	return Score{ClickProb: clickProb, Reward: reward, Combined: combined}
}

func (m *Model) rewardFor(scaled []float64, objective string, stats store.SourceStats) float64 {
	if objective != "" {
		if head, ok := m.rewardByID[objective]; ok {
			return clampReward(head.Predict(scaled))
		}
		return fallbackReward(stats)
	}

	if len(m.rewardByID) == 0 {
		return fallbackReward(stats)
	}
	var sum float64
	for _, head := range m.rewardByID {
		sum += clampReward(head.Predict(scaled))
	}
	return sum / float64(len(m.rewardByID))
}

func fallbackReward(stats store.SourceStats) float64 {
	if stats.AvgReward != 0 {
		return stats.AvgReward
	}
	return coldStartReward
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
