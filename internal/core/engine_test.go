package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewise/ferrite/internal/core/model"
)

func scenarioTables() model.InputTables {
	return model.InputTables{
		Geometry: []model.GeometryRow{
			{JointID: "J1", DistanceM: 100, DiameterMM: 500, WallThicknessMM: 10},
			{JointID: "J2", DistanceM: 220, DiameterMM: 500, WallThicknessMM: 10},
			{JointID: "J3", DistanceM: 340, DiameterMM: 500, WallThicknessMM: 10},
		},
		ILIReadings: []model.ILIRow{
			{JointID: "J1", DefectType: model.DefectPitting, DepthMM: 4.0},
			{JointID: "J2", DefectType: model.DefectPitting, DepthMM: 0.5},
			{JointID: "J3", DefectType: model.DefectPitting, DepthMM: 6.8},
		},
		FieldVerification: []model.FieldVerificationRow{
			{JointID: "J1", DepthMM: 5.0},
			{JointID: "J2", DepthMM: 0.0},
			{JointID: "J3", DepthMM: 7.0},
		},
		SoilResistivity: []model.SoilResistivityRow{
			{JointID: "J1", ResistivityOhmCM: 1500},
			{JointID: "J2", ResistivityOhmCM: 4000},
			{JointID: "J3", ResistivityOhmCM: 900},
		},
		SoilType: []model.SoilTypeRow{
			{JointID: "J1", SoilType: "Clay"},
			{JointID: "J2", SoilType: "Sand"},
			{JointID: "J3", SoilType: "Clay"},
		},
		PressureProfile: []model.PressureRow{
			{JointID: "J1", PressureKPa: 5000},
			{JointID: "J2", PressureKPa: 5000},
			{JointID: "J3", PressureKPa: 5200},
		},
		GrowthRates: []model.GrowthRateRow{
			{JointID: "J1", RateMMPerYear: 0.2},
			{JointID: "J2", RateMMPerYear: 0.0},
			{JointID: "J3", RateMMPerYear: 0.5},
		},
	}
}

func scenarioParams() model.Params {
	return model.Params{
		ILIDate:            time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		TargetDate:         time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC),
		Tolerances:         map[model.DefectType]float64{model.DefectPitting: 0.10},
		DetectionThreshold: 0.10,
		Samples:            2000,
		Seed:               7,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	engine := NewEngine(nil, nil)
	bundle, err := engine.Run(context.Background(), scenarioTables(), scenarioParams())
	require.NoError(t, err)

	assert.NotEmpty(t, bundle.RunID)

	// 3 defects x 6 projection years (2023..2028 inclusive of year 0).
	require.Len(t, bundle.POF, 18)
	for _, row := range bundle.POF {
		assert.GreaterOrEqual(t, row.POF, 0.0)
		assert.LessOrEqual(t, row.POF, 1.0)
	}

	// Sorted by joint_id then year.
	for i := 1; i < len(bundle.POF); i++ {
		prev, cur := bundle.POF[i-1], bundle.POF[i]
		ordered := prev.JointID < cur.JointID ||
			(prev.JointID == cur.JointID && prev.Year < cur.Year)
		assert.True(t, ordered)
	}

	// Zero depth + zero growth stays safe for every year.
	for _, row := range bundle.POF {
		if row.JointID == "J2" {
			assert.LessOrEqual(t, row.POF, 0.001)
		}
	}

	require.Len(t, bundle.Consolidated, 3)
	assert.Equal(t, model.UncertaintyAvailable, bundle.UncertaintyStatus)
	assert.NotEmpty(t, bundle.FeatureImportance)
	assert.Len(t, bundle.Attributions, 3)
}

func TestRun_FieldDepthIsGroundTruth(t *testing.T) {
	engine := NewEngine(nil, nil)
	bundle, err := engine.Run(context.Background(), scenarioTables(), scenarioParams())
	require.NoError(t, err)

	j1 := bundle.Consolidated[0]
	require.Equal(t, "J1", j1.JointID)
	assert.Equal(t, model.DepthSourceField, j1.DepthSource)
	require.NotNil(t, j1.BestDepthMM)
	assert.Equal(t, 5.0, *j1.BestDepthMM, "field depth must win exactly, regardless of the prediction")
	assert.NotNil(t, j1.PredictedDepthMM, "prediction is kept for parity diagnostics")
}

func TestRun_ModelImputesWhenFieldAbsent(t *testing.T) {
	tables := scenarioTables()
	tables.Geometry = append(tables.Geometry,
		model.GeometryRow{JointID: "J4", DistanceM: 400, DiameterMM: 500, WallThicknessMM: 10})
	tables.ILIReadings = append(tables.ILIReadings,
		model.ILIRow{JointID: "J4", DefectType: model.DefectPitting, DepthMM: 3.0})
	tables.PressureProfile = append(tables.PressureProfile,
		model.PressureRow{JointID: "J4", PressureKPa: 5000})

	engine := NewEngine(nil, nil)
	bundle, err := engine.Run(context.Background(), tables, scenarioParams())
	require.NoError(t, err)

	var j4 model.ConsolidatedRecord
	for _, c := range bundle.Consolidated {
		if c.JointID == "J4" {
			j4 = c
		}
	}
	assert.Equal(t, model.DepthSourceModel, j4.DepthSource)
	require.NotNil(t, j4.BestDepthMM)
	assert.GreaterOrEqual(t, *j4.BestDepthMM, 0.0)
	assert.LessOrEqual(t, *j4.BestDepthMM, 10.0)
}

func TestRun_ImputationFallback(t *testing.T) {
	tables := scenarioTables()
	tables.FieldVerification = nil // no training data at all

	engine := NewEngine(nil, nil)
	bundle, err := engine.Run(context.Background(), tables, scenarioParams())
	require.NoError(t, err, "missing training data has a defined fallback, not a failure")

	assert.Equal(t, model.UncertaintyUnavailable, bundle.UncertaintyStatus)
	assert.Empty(t, bundle.FeatureImportance)
	for _, c := range bundle.Consolidated {
		assert.Equal(t, model.DepthSourceILI, c.DepthSource)
	}
	assert.Len(t, bundle.POF, 18, "POF table is still complete on the fallback path")

	found := false
	for _, d := range bundle.Diagnostics {
		if d.Stage == "impute" {
			found = true
		}
	}
	assert.True(t, found, "fallback must be visible in diagnostics")
}

func TestRun_LowSizingConfidenceFlag(t *testing.T) {
	engine := NewEngine(nil, nil)
	bundle, err := engine.Run(context.Background(), scenarioTables(), scenarioParams())
	require.NoError(t, err)

	flags := map[string]bool{}
	for _, c := range bundle.Consolidated {
		flags[c.JointID] = c.LowSizingConfidence
	}
	assert.True(t, flags["J2"], "0.5mm of 10mm wall sits under the 0.10 threshold")
	assert.False(t, flags["J1"])
	assert.False(t, flags["J3"])
}

func TestRun_ParamValidation(t *testing.T) {
	engine := NewEngine(nil, nil)

	params := scenarioParams()
	params.DetectionThreshold = 1.5
	_, err := engine.Run(context.Background(), scenarioTables(), params)
	var stageErr *model.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "params", stageErr.Stage)

	params = scenarioParams()
	params.TargetDate = params.ILIDate.AddDate(-1, 0, 0)
	_, err = engine.Run(context.Background(), scenarioTables(), params)
	require.ErrorAs(t, err, &stageErr)

	params = scenarioParams()
	params.Tolerances = map[model.DefectType]float64{model.DefectPitting: 1.2}
	_, err = engine.Run(context.Background(), scenarioTables(), params)
	require.ErrorAs(t, err, &stageErr)
}

func TestRun_SchemaErrorTagged(t *testing.T) {
	tables := scenarioTables()
	tables.ILIReadings = append(tables.ILIReadings, tables.ILIReadings[0])

	_, err := NewEngine(nil, nil).Run(context.Background(), tables, scenarioParams())

	var stageErr *model.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "assemble", stageErr.Stage)
	var schemaErr *model.SchemaMismatchError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(nil, nil).Run(ctx, scenarioTables(), scenarioParams())
	assert.ErrorIs(t, err, model.ErrSimulationCancelled)
}

func TestRun_DeterministicPOFTable(t *testing.T) {
	engine := NewEngine(nil, nil)

	a, err := engine.Run(context.Background(), scenarioTables(), scenarioParams())
	require.NoError(t, err)
	b, err := engine.Run(context.Background(), scenarioTables(), scenarioParams())
	require.NoError(t, err)

	assert.Equal(t, a.POF, b.POF, "identical inputs and seed must give bit-identical POF tables")
	assert.NotEqual(t, a.RunID, b.RunID)
}
