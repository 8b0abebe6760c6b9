package assemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/pipewise/ferrite/internal/core/model"
)

// Assembler joins the ten input tables into one unified record per defect,
// keyed by joint_id. Covariates that fail to match are left absent; the join
// never drops a defect for a missing covariate.
type Assembler struct{}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// distanceEpsilon tolerates float drift between exports of the same survey.
const distanceEpsilon = 1e-6

// Assemble builds the unified record set. It fails with SchemaMismatchError
// when the join key is absent, or duplicated in a way that would silently fan
// out rows (same joint_id with conflicting geometry).
func (a *Assembler) Assemble(tables model.InputTables) ([]model.DefectRecord, []model.Diagnostic, error) {
	if len(tables.ILIReadings) == 0 {
		return nil, nil, &model.SchemaMismatchError{Table: "ili_readings", Reason: "no defect rows"}
	}

	var diags []model.Diagnostic

	// 1. Index geometry, rejecting conflicting duplicates. Identical
	// duplicate rows (re-exported joints) collapse silently.
	geometry := make(map[string]model.GeometryRow, len(tables.Geometry))
	for _, g := range tables.Geometry {
		if g.JointID == "" {
			return nil, nil, &model.SchemaMismatchError{Table: "geometry", Column: "joint_id", Reason: "empty join key"}
		}
		if prev, ok := geometry[g.JointID]; ok {
			if math.Abs(prev.DistanceM-g.DistanceM) > distanceEpsilon ||
				prev.DiameterMM != g.DiameterMM ||
				prev.WallThicknessMM != g.WallThicknessMM {
				return nil, nil, &model.SchemaMismatchError{
					Table:  "geometry",
					Key:    g.JointID,
					Reason: "duplicate joint_id with conflicting distance or geometry",
				}
			}
			continue
		}
		geometry[g.JointID] = g
	}

	// 2. Index the single-valued covariate tables.
	fieldDepth, err := indexUnique(tables.FieldVerification, "field_verification",
		func(r model.FieldVerificationRow) string { return r.JointID },
		func(r model.FieldVerificationRow) float64 { return r.DepthMM })
	if err != nil {
		return nil, nil, err
	}
	resistivity, err := indexUnique(tables.SoilResistivity, "soil_resistivity",
		func(r model.SoilResistivityRow) string { return r.JointID },
		func(r model.SoilResistivityRow) float64 { return r.ResistivityOhmCM })
	if err != nil {
		return nil, nil, err
	}
	potential, err := indexUnique(tables.CPPotential, "cp_potential",
		func(r model.CPPotentialRow) string { return r.JointID },
		func(r model.CPPotentialRow) float64 { return r.PotentialMV })
	if err != nil {
		return nil, nil, err
	}
	pressure, err := indexUnique(tables.PressureProfile, "pressure_profile",
		func(r model.PressureRow) string { return r.JointID },
		func(r model.PressureRow) float64 { return r.PressureKPa })
	if err != nil {
		return nil, nil, err
	}
	growth, err := indexUnique(tables.GrowthRates, "growth_rates",
		func(r model.GrowthRateRow) string { return r.JointID },
		func(r model.GrowthRateRow) float64 { return r.RateMMPerYear })
	if err != nil {
		return nil, nil, err
	}

	soilType := make(map[string]string, len(tables.SoilType))
	for _, r := range tables.SoilType {
		soilType[r.JointID] = r.SoilType
	}
	coating := make(map[string]string, len(tables.Coating))
	for _, r := range tables.Coating {
		coating[r.JointID] = r.CoatingType
	}
	interference := make(map[string]string, len(tables.Interference))
	for _, r := range tables.Interference {
		interference[r.JointID] = r.Interference
	}

	// 3. One record per ILI defect. joint_id must be unique across the run.
	seen := make(map[string]bool, len(tables.ILIReadings))
	records := make([]model.DefectRecord, 0, len(tables.ILIReadings))
	for _, ili := range tables.ILIReadings {
		if ili.JointID == "" {
			return nil, nil, &model.SchemaMismatchError{Table: "ili_readings", Column: "joint_id", Reason: "empty join key"}
		}
		if seen[ili.JointID] {
			return nil, nil, &model.SchemaMismatchError{
				Table:  "ili_readings",
				Key:    ili.JointID,
				Reason: "duplicate joint_id: join would fan out rows",
			}
		}
		seen[ili.JointID] = true

		rec := model.DefectRecord{
			JointID:    ili.JointID,
			DefectType: ili.DefectType,
			LengthMM:   ili.LengthMM,
		}
		depth := ili.DepthMM
		rec.ILIDepthMM = &depth

		if g, ok := geometry[ili.JointID]; ok {
			rec.DistanceM = g.DistanceM
			rec.DiameterMM = g.DiameterMM
			rec.WallThicknessMM = g.WallThicknessMM
			rec.SMYSMPa = g.SMYSMPa
		} else {
			diags = append(diags, model.Diagnostic{
				JointID: ili.JointID,
				Stage:   "assemble",
				Reason:  "no geometry row; record kept but excluded from reliability",
			})
		}

		if v, ok := fieldDepth[ili.JointID]; ok {
			rec.FieldDepthMM = model.Float64Ptr(v)
		}
		if v, ok := resistivity[ili.JointID]; ok {
			rec.SoilResistivityOhmCM = model.Float64Ptr(v)
		}
		if v, ok := potential[ili.JointID]; ok {
			rec.CPPotentialMV = model.Float64Ptr(v)
		}
		if v, ok := pressure[ili.JointID]; ok {
			rec.PressureKPa = model.Float64Ptr(v)
		}
		if v, ok := growth[ili.JointID]; ok {
			if v < 0 {
				diags = append(diags, model.Diagnostic{
					JointID: ili.JointID,
					Stage:   "assemble",
					Reason:  fmt.Sprintf("negative growth rate %.4f mm/yr clamped to 0", v),
				})
				v = 0
			}
			rec.GrowthRateMMYr = model.Float64Ptr(v)
		}
		rec.SoilType = soilType[ili.JointID]
		rec.CoatingType = coating[ili.JointID]
		rec.Interference = interference[ili.JointID]

		records = append(records, rec)
	}

	// Covariate rows pointing at joints with no defect are tolerated; they
	// usually come from segment-level surveys that cover clean pipe too.
	orphans := 0
	for id := range fieldDepth {
		if !seen[id] {
			orphans++
		}
	}
	if orphans > 0 {
		diags = append(diags, model.Diagnostic{
			Stage:  "assemble",
			Reason: fmt.Sprintf("%d field_verification rows matched no defect", orphans),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].DistanceM != records[j].DistanceM {
			return records[i].DistanceM < records[j].DistanceM
		}
		return records[i].JointID < records[j].JointID
	})

	return records, diags, nil
}

// indexUnique builds a joint_id -> value map, rejecting duplicate keys whose
// values disagree.
func indexUnique[T any](rows []T, table string, key func(T) string, value func(T) float64) (map[string]float64, error) {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		k := key(r)
		if k == "" {
			return nil, &model.SchemaMismatchError{Table: table, Column: "joint_id", Reason: "empty join key"}
		}
		v := value(r)
		if prev, ok := out[k]; ok && prev != v {
			return nil, &model.SchemaMismatchError{
				Table:  table,
				Key:    k,
				Reason: "duplicate joint_id with conflicting values",
			}
		}
		out[k] = v
	}
	return out, nil
}
