package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewise/ferrite/internal/config"
	"github.com/pipewise/ferrite/internal/core"
	"github.com/pipewise/ferrite/internal/core/model"
	"github.com/pipewise/ferrite/internal/loader"
)

// writeDataset lays out a small three-defect pipeline segment as the CSV
// bundle the loader expects: J1 and J3 are active corrosion features, J2 is a
// shallow reading that field verification measured at zero depth.
func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	tables := map[string]string{
		"geometry": "joint_id,distance_m,diameter_mm,wall_thickness_mm,smys_mpa\n" +
			"J1,100,500,10,359\n" +
			"J2,220,500,10,359\n" +
			"J3,340,500,10,359\n",
		"ili_readings": "joint_id,defect_type,depth_mm,length_mm\n" +
			"J1,Pitting,4.0,80\n" +
			"J2,Pitting,0.5,\n" +
			"J3,Pitting,6.8,120\n",
		"field_verification": "joint_id,depth_mm\n" +
			"J1,5.0\n" +
			"J2,0.0\n" +
			"J3,7.0\n",
		"soil_resistivity": "joint_id,resistivity_ohm_cm\n" +
			"J1,1500\nJ2,4000\nJ3,900\n",
		"soil_type": "joint_id,soil_type\n" +
			"J1,Clay\nJ2,Sand\nJ3,Clay\n",
		"cp_potential": "joint_id,potential_mv\n" +
			"J1,-850\nJ2,-900\nJ3,-780\n",
		"interference": "joint_id,interference\n" +
			"J1,None\nJ2,None\nJ3,AC\n",
		"coating": "joint_id,coating_type\n" +
			"J1,FBE\nJ2,FBE\nJ3,Tape\n",
		"pressure_profile": "joint_id,pressure_kpa\n" +
			"J1,5000\nJ2,5000\nJ3,5200\n",
		"growth_rates": "joint_id,rate_mm_per_year\n" +
			"J1,0.2\nJ2,0.0\nJ3,0.5\n",
	}
	for name, content := range tables {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".csv"), []byte(content), 0o644))
	}
	return dir
}

func scenarioParams(cfg *config.Config) model.Params {
	return model.Params{
		ILIDate:            time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		TargetDate:         time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC),
		Tolerances:         cfg.ToleranceProfile(),
		DetectionThreshold: cfg.Simulation.DetectionThreshold,
		Samples:            5000,
		Seed:               7,
	}
}

func TestSimulationPipeline(t *testing.T) {
	tables, err := loader.LoadDir(writeDataset(t))
	require.NoError(t, err)

	cfg := config.Default()
	engine := core.NewEngine(cfg, nil)

	bundle, err := engine.Run(context.Background(), tables, scenarioParams(cfg))
	require.NoError(t, err)

	assert.NotEmpty(t, bundle.RunID)
	assert.Positive(t, bundle.Elapsed)

	// 3 defects x years 0..5.
	require.Len(t, bundle.POF, 18)
	for _, row := range bundle.POF {
		assert.GreaterOrEqual(t, row.POF, 0.0)
		assert.LessOrEqual(t, row.POF, 1.0)
	}

	// POF never decreases as the projection horizon extends.
	byJoint := map[string][]model.POFRow{}
	for _, row := range bundle.POF {
		byJoint[row.JointID] = append(byJoint[row.JointID], row)
	}
	require.Len(t, byJoint, 3)
	for jointID, rows := range byJoint {
		for i := 1; i < len(rows); i++ {
			assert.GreaterOrEqual(t, rows[i].POF, rows[i-1].POF,
				"POF for %s must be non-decreasing in year", jointID)
		}
	}

	// Zero measured depth with zero growth stays negligible out to the horizon.
	for _, row := range byJoint["J2"] {
		assert.LessOrEqual(t, row.POF, 0.001)
	}

	// The deepest, fastest-growing defect dominates at the horizon.
	last := func(rows []model.POFRow) float64 { return rows[len(rows)-1].POF }
	assert.Greater(t, last(byJoint["J3"]), last(byJoint["J1"]))

	require.Len(t, bundle.Consolidated, 3)
	for _, rec := range bundle.Consolidated {
		assert.Equal(t, model.DepthSourceField, rec.DepthSource)
	}
	assert.Equal(t, model.UncertaintyAvailable, bundle.UncertaintyStatus)
	assert.NotEmpty(t, bundle.FeatureImportance)
	assert.Len(t, bundle.Attributions, 3)
}

func TestSimulationPipeline_Deterministic(t *testing.T) {
	dir := writeDataset(t)
	cfg := config.Default()

	run := func() *model.ResultBundle {
		tables, err := loader.LoadDir(dir)
		require.NoError(t, err)
		bundle, err := core.NewEngine(cfg, nil).Run(context.Background(), tables, scenarioParams(cfg))
		require.NoError(t, err)
		return bundle
	}

	a, b := run(), run()
	assert.Equal(t, a.POF, b.POF)
	assert.Equal(t, a.Consolidated, b.Consolidated)
}
