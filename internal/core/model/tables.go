package model

import "time"

// The ten input tables supplied by the loader collaborator. Each is already
// typed; the engine never sees raw CSV cells.

type GeometryRow struct {
	JointID         string   `json:"joint_id"`
	DistanceM       float64  `json:"distance_m"`
	DiameterMM      float64  `json:"diameter_mm"`
	WallThicknessMM float64  `json:"wall_thickness_mm"`
	SMYSMPa         *float64 `json:"smys_mpa,omitempty"`
}

type ILIRow struct {
	JointID    string     `json:"joint_id"`
	DefectType DefectType `json:"defect_type"`
	DepthMM    float64    `json:"depth_mm"`
	LengthMM   *float64   `json:"length_mm,omitempty"`
}

type FieldVerificationRow struct {
	JointID string  `json:"joint_id"`
	DepthMM float64 `json:"depth_mm"`
}

type SoilResistivityRow struct {
	JointID          string  `json:"joint_id"`
	ResistivityOhmCM float64 `json:"resistivity_ohm_cm"`
}

type SoilTypeRow struct {
	JointID  string `json:"joint_id"`
	SoilType string `json:"soil_type"`
}

type CPPotentialRow struct {
	JointID     string  `json:"joint_id"`
	PotentialMV float64 `json:"potential_mv"`
}

type InterferenceRow struct {
	JointID      string `json:"joint_id"`
	Interference string `json:"interference"`
}

type CoatingRow struct {
	JointID     string `json:"joint_id"`
	CoatingType string `json:"coating_type"`
}

type PressureRow struct {
	JointID     string  `json:"joint_id"`
	PressureKPa float64 `json:"pressure_kpa"`
}

type GrowthRateRow struct {
	JointID       string  `json:"joint_id"`
	RateMMPerYear float64 `json:"rate_mm_per_year"`
}

// InputTables bundles all ten sources for one invocation.
type InputTables struct {
	Geometry          []GeometryRow          `json:"geometry"`
	ILIReadings       []ILIRow               `json:"ili_readings"`
	FieldVerification []FieldVerificationRow `json:"field_verification"`
	SoilResistivity   []SoilResistivityRow   `json:"soil_resistivity"`
	SoilType          []SoilTypeRow          `json:"soil_type"`
	CPPotential       []CPPotentialRow       `json:"cp_potential"`
	Interference      []InterferenceRow      `json:"interference"`
	Coating           []CoatingRow           `json:"coating"`
	PressureProfile   []PressureRow          `json:"pressure_profile"`
	GrowthRates       []GrowthRateRow        `json:"growth_rates"`
}

// Params carries the per-run simulation settings.
type Params struct {
	ILIDate            time.Time              `json:"ili_date"`
	TargetDate         time.Time              `json:"target_date"`
	Tolerances         map[DefectType]float64 `json:"tolerances"`
	DetectionThreshold float64                `json:"detection_threshold"`

	// Monte Carlo controls. Zero values mean "use configured defaults".
	Samples int    `json:"samples,omitempty"`
	Workers int    `json:"workers,omitempty"`
	Seed    uint64 `json:"seed,omitempty"`
}

// ProjectionYears returns the number of whole years between the ILI date and
// the target date. Projection rows run from year 0 through this value
// inclusive, so 2023-01-01 -> 2028-01-01 yields offsets 0..5.
func (p Params) ProjectionYears() int {
	if !p.TargetDate.After(p.ILIDate) {
		return 0
	}
	years := 0
	for p.ILIDate.AddDate(years+1, 0, 0).Before(p.TargetDate) ||
		p.ILIDate.AddDate(years+1, 0, 0).Equal(p.TargetDate) {
		years++
	}
	return years
}

// DefaultTolerances mirrors the sizing-accuracy table the original assessment
// tool ships with, per defect type.
func DefaultTolerances() map[DefectType]float64 {
	return map[DefectType]float64{
		DefectGeneral:       0.10,
		DefectPitting:       0.10,
		DefectAxialGrooving: 0.15,
		DefectCircGrooving:  0.15,
		DefectPinhole:       0.10,
		DefectAxialSlotting: 0.15,
		DefectCircSlotting:  0.10,
	}
}
