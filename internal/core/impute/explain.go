package impute

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/pipewise/ferrite/internal/core/model"
)

// SupportsAttribution reports whether the model can explain its predictions.
// Attribution needs a fitted training set and nothing else, so failure to
// compute it is a capability answer here, not a swallowed exception.
func (m *Model) SupportsAttribution() bool { return m.fitted }

// FeatureImportance ranks features by permutation importance: the increase in
// leave-one-out MAE when a feature's column is displaced across the training
// set. The displacement is a seeded cyclic shift, which is never the identity
// even on tiny training sets and keeps the table reproducible per run. Values
// are normalized to sum to 1 and sorted descending.
func (m *Model) FeatureImportance() []model.FeatureImportance {
	if !m.fitted || len(m.train) < 2 {
		return nil
	}

	base := m.looMAE(0, -1)
	names := append(append([]string{}, numericNames...), categoricalNames...)
	raw := make([]float64, len(names))

	for fi := range names {
		rng := rand.New(rand.NewPCG(m.Seed, uint64(fi)+1))
		shift := 1 + rng.IntN(len(m.train)-1)
		delta := m.looMAE(shift, fi) - base
		if delta > 0 {
			raw[fi] = delta
		}
	}

	var total float64
	for _, v := range raw {
		total += v
	}
	out := make([]model.FeatureImportance, len(names))
	for i, name := range names {
		imp := 0.0
		if total > 0 {
			imp = raw[i] / total
		}
		out[i] = model.FeatureImportance{Feature: name, Importance: imp}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

// Attribute explains one prediction: for each feature, the signed depth delta
// between the full prediction and the prediction with that feature replaced
// by its training baseline (mean for numerics, mode for categoricals). No
// ground truth is needed.
func (m *Model) Attribute(rec model.DefectRecord) map[string]float64 {
	if !m.fitted {
		return nil
	}

	num := m.normalize(rec)
	cat := categoricalValues(rec)
	full, _ := m.predictVector(num, cat, -1)

	contributions := make(map[string]float64, len(numericNames)+len(categoricalNames))
	for i, name := range numericNames {
		neutral := append([]float64{}, num...)
		neutral[i] = 0 // normalized mean
		pred, _ := m.predictVector(neutral, cat, -1)
		contributions[name] = full - pred
	}
	for i, name := range categoricalNames {
		neutral := append([]string{}, cat...)
		neutral[i] = m.categoricalMode(i)
		pred, _ := m.predictVector(num, neutral, -1)
		contributions[name] = full - pred
	}
	return contributions
}

// looMAE computes leave-one-out mean absolute error over the training set.
// When feature >= 0, that feature's value in each query is taken from the row
// shift positions away instead of row i.
func (m *Model) looMAE(shift int, feature int) float64 {
	if len(m.train) < 2 {
		return 0
	}
	var total float64
	for i, s := range m.train {
		num := append([]float64{}, s.num...)
		cat := append([]string{}, s.cat...)
		if feature >= 0 {
			donor := m.train[(i+shift)%len(m.train)]
			if feature < len(numericNames) {
				num[feature] = donor.num[feature]
			} else {
				cat[feature-len(numericNames)] = donor.cat[feature-len(numericNames)]
			}
		}
		pred, _ := m.predictVector(num, cat, i)
		total += math.Abs(pred - s.target)
	}
	return total / float64(len(m.train))
}

func (m *Model) categoricalMode(idx int) string {
	counts := make(map[string]int)
	for _, s := range m.train {
		counts[s.cat[idx]]++
	}
	mode := ""
	best := -1
	for v, c := range counts {
		if c > best || (c == best && v < mode) {
			mode, best = v, c
		}
	}
	return mode
}
