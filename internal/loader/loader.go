package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"github.com/pipewise/ferrite/internal/core/model"
)

// LoadDir reads the ten named input tables from <dir>/<table>.csv into typed
// rows. This is the out-of-process collaborator's job in the deployed system;
// it lives here so the CLI can drive the engine from plain survey exports.
// Column order is free; matching is by header name, case-insensitive.
func LoadDir(dir string) (model.InputTables, error) {
	var tables model.InputTables

	if err := loadTable(dir, "geometry", []string{"joint_id", "distance_m", "diameter_mm", "wall_thickness_mm"},
		func(row row) error {
			r := model.GeometryRow{
				JointID:         row.str("joint_id"),
				DistanceM:       row.float("distance_m"),
				DiameterMM:      row.float("diameter_mm"),
				WallThicknessMM: row.float("wall_thickness_mm"),
				SMYSMPa:         row.optFloat("smys_mpa"),
			}
			tables.Geometry = append(tables.Geometry, r)
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "ili_readings", []string{"joint_id", "defect_type", "depth_mm"},
		func(row row) error {
			r := model.ILIRow{
				JointID:    row.str("joint_id"),
				DefectType: model.DefectType(row.str("defect_type")),
				DepthMM:    row.float("depth_mm"),
				LengthMM:   row.optFloat("length_mm"),
			}
			tables.ILIReadings = append(tables.ILIReadings, r)
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "field_verification", []string{"joint_id", "depth_mm"},
		func(row row) error {
			tables.FieldVerification = append(tables.FieldVerification, model.FieldVerificationRow{
				JointID: row.str("joint_id"),
				DepthMM: row.float("depth_mm"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "soil_resistivity", []string{"joint_id", "resistivity_ohm_cm"},
		func(row row) error {
			tables.SoilResistivity = append(tables.SoilResistivity, model.SoilResistivityRow{
				JointID:          row.str("joint_id"),
				ResistivityOhmCM: row.float("resistivity_ohm_cm"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "soil_type", []string{"joint_id", "soil_type"},
		func(row row) error {
			tables.SoilType = append(tables.SoilType, model.SoilTypeRow{
				JointID:  row.str("joint_id"),
				SoilType: row.str("soil_type"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "cp_potential", []string{"joint_id", "potential_mv"},
		func(row row) error {
			tables.CPPotential = append(tables.CPPotential, model.CPPotentialRow{
				JointID:     row.str("joint_id"),
				PotentialMV: row.float("potential_mv"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "interference", []string{"joint_id", "interference"},
		func(row row) error {
			tables.Interference = append(tables.Interference, model.InterferenceRow{
				JointID:      row.str("joint_id"),
				Interference: row.str("interference"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "coating", []string{"joint_id", "coating_type"},
		func(row row) error {
			tables.Coating = append(tables.Coating, model.CoatingRow{
				JointID:     row.str("joint_id"),
				CoatingType: row.str("coating_type"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "pressure_profile", []string{"joint_id", "pressure_kpa"},
		func(row row) error {
			tables.PressureProfile = append(tables.PressureProfile, model.PressureRow{
				JointID:     row.str("joint_id"),
				PressureKPa: row.float("pressure_kpa"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	if err := loadTable(dir, "growth_rates", []string{"joint_id", "rate_mm_per_year"},
		func(row row) error {
			tables.GrowthRates = append(tables.GrowthRates, model.GrowthRateRow{
				JointID:       row.str("joint_id"),
				RateMMPerYear: row.float("rate_mm_per_year"),
			})
			return row.err
		}); err != nil {
		return tables, err
	}

	return tables, nil
}

// row wraps one CSV record with header lookup and loose coercion. Coercion
// failures accumulate in err so each parser stays declarative.
type row struct {
	table  string
	index  map[string]int
	record []string
	err    error
}

func (r *row) cell(column string) (string, bool) {
	i, ok := r.index[column]
	if !ok || i >= len(r.record) {
		return "", false
	}
	return strings.TrimSpace(r.record[i]), true
}

func (r *row) str(column string) string {
	v, _ := r.cell(column)
	return v
}

func (r *row) float(column string) float64 {
	v, ok := r.cell(column)
	if !ok || v == "" {
		r.fail(column, "required value missing")
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		r.fail(column, fmt.Sprintf("cannot parse %q as number", v))
		return 0
	}
	return f
}

func (r *row) optFloat(column string) *float64 {
	v, ok := r.cell(column)
	if !ok || v == "" {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		r.fail(column, fmt.Sprintf("cannot parse %q as number", v))
		return nil
	}
	return &f
}

func (r *row) fail(column, reason string) {
	if r.err == nil {
		r.err = &model.SchemaMismatchError{Table: r.table, Column: column, Reason: reason}
	}
}

func loadTable(dir, name string, required []string, parse func(row) error) error {
	path := filepath.Join(dir, name+".csv")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open table %q: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of table %q: %w", name, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return &model.SchemaMismatchError{Table: name, Column: col, Reason: "required column missing"}
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read table %q: %w", name, err)
	}
	for _, rec := range records {
		if err := parse(row{table: name, index: index, record: rec}); err != nil {
			return err
		}
	}
	return nil
}
