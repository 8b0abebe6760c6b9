package impute

import (
	"math"

	"go.uber.org/zap"

	"github.com/pipewise/ferrite/internal/core/model"
)

// Model predicts true defect depth from environmental/operational covariates,
// trained on the field-verified subset. It is a distance-weighted k-nearest-
// neighbour regressor over normalized features: small enough to fit on the
// handful of dig-verified rows a typical run has, and its neighbour spread
// doubles as a per-record uncertainty band.
type Model struct {
	K               int
	MinTrainingRows int
	Seed            uint64

	logger *zap.Logger

	means  []float64
	stds   []float64
	train  []trainSample
	fitted bool
	status model.UncertaintyStatus
}

type trainSample struct {
	jointID string
	num     []float64 // normalized; missing values sit at 0 (the mean)
	cat     []string
	target  float64
}

// Feature order is fixed; the importance table and attributions key off these names.
var (
	numericNames     = []string{"distance_m", "soil_resistivity_ohm_cm", "cp_potential_mv", "pressure_kpa"}
	categoricalNames = []string{"soil_type", "coating_type", "interference", "defect_type"}
)

const distanceWeightEpsilon = 1e-9

func NewModel(k, minTrainingRows int, seed uint64, logger *zap.Logger) *Model {
	if k <= 0 {
		k = 5
	}
	if minTrainingRows <= 0 {
		minTrainingRows = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		K:               k,
		MinTrainingRows: minTrainingRows,
		Seed:            seed,
		logger:          logger,
		status:          model.UncertaintyUnavailable,
	}
}

// Fit trains on every record that carries a field-verified depth. It fails
// with InsufficientTrainingDataError when too few such rows exist; the caller
// owns the fallback.
func (m *Model) Fit(records []model.DefectRecord) error {
	var raw []model.DefectRecord
	for _, r := range records {
		if r.FieldDepthMM != nil {
			raw = append(raw, r)
		}
	}
	if len(raw) < m.MinTrainingRows {
		return &model.InsufficientTrainingDataError{Rows: len(raw), Required: m.MinTrainingRows}
	}

	// Normalization stats from the training rows only.
	m.means = make([]float64, len(numericNames))
	m.stds = make([]float64, len(numericNames))
	for i := range numericNames {
		var sum, sumSq float64
		n := 0
		for _, r := range raw {
			if v := numericValue(r, i); v != nil {
				sum += *v
				sumSq += *v * *v
				n++
			}
		}
		if n > 0 {
			m.means[i] = sum / float64(n)
			variance := sumSq/float64(n) - m.means[i]*m.means[i]
			if variance > 0 {
				m.stds[i] = math.Sqrt(variance)
			}
		}
		if m.stds[i] == 0 {
			m.stds[i] = 1 // degenerate feature: no discriminating power, no blow-up
		}
	}

	m.train = make([]trainSample, 0, len(raw))
	for _, r := range raw {
		m.train = append(m.train, trainSample{
			jointID: r.JointID,
			num:     m.normalize(r),
			cat:     categoricalValues(r),
			target:  *r.FieldDepthMM,
		})
	}

	m.fitted = true
	m.status = model.UncertaintyAvailable
	if !m.targetsVary() {
		// All verified depths identical: the spread estimate carries no
		// information, so report uncertainty as unavailable.
		m.status = model.UncertaintyUnavailable
	}

	m.logger.Info("imputation model fitted",
		zap.Int("training_rows", len(m.train)),
		zap.Int("k", m.effectiveK()),
		zap.String("uncertainty", string(m.status)))
	return nil
}

// Predict returns the depth estimate and its uncertainty (weighted neighbour
// standard deviation, mm) for one record. Requires a successful Fit.
func (m *Model) Predict(rec model.DefectRecord) (float64, float64) {
	return m.predictVector(m.normalize(rec), categoricalValues(rec), -1)
}

// UncertaintyStatus reports whether the per-record uncertainty estimates are
// meaningful for this fit.
func (m *Model) UncertaintyStatus() model.UncertaintyStatus { return m.status }

// Fitted reports whether Fit has completed successfully.
func (m *Model) Fitted() bool { return m.fitted }

// predictVector runs the k-NN estimate against the training set. skip
// excludes one training index (for leave-one-out evaluation); pass -1 to use
// the whole set.
func (m *Model) predictVector(num []float64, cat []string, skip int) (float64, float64) {
	type neighbour struct {
		dist   float64
		target float64
	}
	neighbours := make([]neighbour, 0, len(m.train))
	for i, s := range m.train {
		if i == skip {
			continue
		}
		neighbours = append(neighbours, neighbour{dist: featureDistance(num, cat, s), target: s.target})
	}

	// Partial sort: only the k nearest matter.
	k := m.effectiveK()
	if skip >= 0 && k > len(neighbours) {
		k = len(neighbours)
	}
	for i := 0; i < k; i++ {
		min := i
		for j := i + 1; j < len(neighbours); j++ {
			if neighbours[j].dist < neighbours[min].dist {
				min = j
			}
		}
		neighbours[i], neighbours[min] = neighbours[min], neighbours[i]
	}
	neighbours = neighbours[:k]

	var weightSum, weighted float64
	for _, n := range neighbours {
		w := 1.0 / (n.dist + distanceWeightEpsilon)
		weightSum += w
		weighted += w * n.target
	}
	pred := weighted / weightSum

	var varSum float64
	for _, n := range neighbours {
		w := 1.0 / (n.dist + distanceWeightEpsilon)
		varSum += w * (n.target - pred) * (n.target - pred)
	}
	sigma := math.Sqrt(varSum / weightSum)

	return pred, sigma
}

func (m *Model) effectiveK() int {
	if m.K < len(m.train) {
		return m.K
	}
	return len(m.train)
}

func (m *Model) targetsVary() bool {
	for i := 1; i < len(m.train); i++ {
		if m.train[i].target != m.train[0].target {
			return true
		}
	}
	return false
}

func (m *Model) normalize(r model.DefectRecord) []float64 {
	out := make([]float64, len(numericNames))
	for i := range numericNames {
		if v := numericValue(r, i); v != nil {
			out[i] = (*v - m.means[i]) / m.stds[i]
		}
		// missing stays at 0, i.e. the training mean
	}
	return out
}

// featureDistance is the mixed metric: Euclidean over normalized numerics
// plus a unit mismatch penalty per categorical feature. An absent category is
// its own category.
func featureDistance(num []float64, cat []string, s trainSample) float64 {
	var sum float64
	for i := range num {
		d := num[i] - s.num[i]
		sum += d * d
	}
	for i := range cat {
		if cat[i] != s.cat[i] {
			sum += 1
		}
	}
	return math.Sqrt(sum)
}

func numericValue(r model.DefectRecord, idx int) *float64 {
	switch idx {
	case 0:
		d := r.DistanceM
		return &d
	case 1:
		return r.SoilResistivityOhmCM
	case 2:
		return r.CPPotentialMV
	case 3:
		return r.PressureKPa
	}
	return nil
}

func categoricalValues(r model.DefectRecord) []string {
	return []string{r.SoilType, r.CoatingType, r.Interference, string(r.DefectType)}
}
