package model

// DefectType is the fixed ILI classification of a wall-loss anomaly.
type DefectType string

const (
	DefectGeneral       DefectType = "General"
	DefectPitting       DefectType = "Pitting"
	DefectAxialGrooving DefectType = "Axial Grooving"
	DefectCircGrooving  DefectType = "Circumferential Grooving"
	DefectPinhole       DefectType = "Pinhole"
	DefectAxialSlotting DefectType = "Axial Slotting"
	DefectCircSlotting  DefectType = "Circumferential Slotting"
)

// DefectRecord is one defect after assembly: geometry plus every covariate
// that could be joined for it. Optional measurements are pointers so that
// "absent" and "zero" stay distinct downstream.
type DefectRecord struct {
	JointID         string     `json:"joint_id"`
	DistanceM       float64    `json:"distance_m"`
	DefectType      DefectType `json:"defect_type"`
	DiameterMM      float64    `json:"diameter_mm"`
	WallThicknessMM float64    `json:"wall_thickness_mm"`
	SMYSMPa         *float64   `json:"smys_mpa,omitempty"`

	ILIDepthMM   *float64 `json:"ili_depth_mm,omitempty"`
	FieldDepthMM *float64 `json:"field_depth_mm,omitempty"`
	LengthMM     *float64 `json:"length_mm,omitempty"`

	SoilResistivityOhmCM *float64 `json:"soil_resistivity_ohm_cm,omitempty"`
	SoilType             string   `json:"soil_type,omitempty"`
	CPPotentialMV        *float64 `json:"cp_potential_mv,omitempty"`
	Interference         string   `json:"interference,omitempty"` // "AC", "DC" or "None"
	CoatingType          string   `json:"coating_type,omitempty"`
	PressureKPa          *float64 `json:"pressure_kpa,omitempty"`

	GrowthRateMMYr *float64 `json:"growth_rate_mm_yr,omitempty"`
}

// HasGeometry reports whether the record carries physically usable pipe
// geometry. Records without it are preserved through assembly but excluded
// from the reliability loop.
func (r *DefectRecord) HasGeometry() bool {
	return r.WallThicknessMM > 0 && r.DiameterMM > 0
}

// Float64Ptr is a convenience for building optional fields in literals.
func Float64Ptr(v float64) *float64 { return &v }
