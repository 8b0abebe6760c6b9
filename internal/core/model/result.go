package model

import "time"

// UncertaintyStatus reports whether the imputation model could quantify its
// own prediction spread for this run.
type UncertaintyStatus string

const (
	UncertaintyAvailable   UncertaintyStatus = "available"
	UncertaintyUnavailable UncertaintyStatus = "unavailable"
)

// DepthSource records which measurement won for a defect's best-available depth.
type DepthSource string

const (
	DepthSourceField DepthSource = "field"
	DepthSourceModel DepthSource = "model"
	DepthSourceILI   DepthSource = "ili"
	DepthSourceNone  DepthSource = "none"
)

// POFRow is one (defect, year) probability-of-failure estimate. Year is the
// whole-year offset from the ILI date, starting at 0.
type POFRow struct {
	JointID   string  `json:"joint_id"`
	Year      int     `json:"year"`
	DistanceM float64 `json:"distance_m"`
	POF       float64 `json:"pof"`
}

// ConsolidatedRecord is the per-defect output row: the assembled record plus
// everything the imputation stage derived for it.
type ConsolidatedRecord struct {
	DefectRecord

	BestDepthMM        *float64    `json:"best_depth_mm,omitempty"`
	PredictedDepthMM   *float64    `json:"predicted_depth_mm,omitempty"`
	DepthUncertaintyMM *float64    `json:"depth_uncertainty_mm,omitempty"`
	DepthSource        DepthSource `json:"depth_source"`

	// LowSizingConfidence marks defects whose measured depth sits below the
	// ILI detection threshold; their POF rows are still computed.
	LowSizingConfidence bool `json:"low_sizing_confidence,omitempty"`
}

// FeatureImportance is one row of the global attribution table.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Attribution is the optional per-record explanation: signed contribution of
// each feature to the predicted depth for one defect.
type Attribution struct {
	JointID       string             `json:"joint_id"`
	Contributions map[string]float64 `json:"contributions"`
}

// Diagnostic is a per-defect note about exclusions and degraded inputs.
type Diagnostic struct {
	JointID string `json:"joint_id,omitempty"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

// ResultBundle is the immutable output of one simulation run. Nothing in it
// is retained by the engine after Run returns.
type ResultBundle struct {
	RunID             string               `json:"run_id"`
	Consolidated      []ConsolidatedRecord `json:"consolidated"`
	POF               []POFRow             `json:"pof"`
	FeatureImportance []FeatureImportance  `json:"feature_importance,omitempty"`
	UncertaintyStatus UncertaintyStatus    `json:"uncertainty_status"`
	Attributions      []Attribution        `json:"attributions,omitempty"`
	Diagnostics       []Diagnostic         `json:"diagnostics,omitempty"`
	Elapsed           time.Duration        `json:"elapsed_ns"`
}
