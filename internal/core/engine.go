package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipewise/ferrite/internal/config"
	"github.com/pipewise/ferrite/internal/core/assemble"
	"github.com/pipewise/ferrite/internal/core/impute"
	"github.com/pipewise/ferrite/internal/core/model"
	"github.com/pipewise/ferrite/internal/core/reliability"
)

// Engine is the single entry point to the simulation: it sequences assembly,
// depth imputation, growth projection and the Monte Carlo reliability loop,
// and returns one immutable result bundle. It holds no state between runs.
type Engine struct {
	cfg       *config.Config
	assembler *assemble.Assembler
	logger    *zap.Logger
}

func NewEngine(cfg *config.Config, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		assembler: assemble.NewAssembler(),
		logger:    logger,
	}
}

// Run executes one simulation. Component failures come back as a StageError
// naming the stage; cancellation surfaces ErrSimulationCancelled. Partial
// results are never returned.
func (e *Engine) Run(ctx context.Context, tables model.InputTables, params model.Params) (*model.ResultBundle, error) {
	start := time.Now()

	if err := validateParams(&params, e.cfg); err != nil {
		return nil, &model.StageError{Stage: "params", Err: err}
	}

	// 1. Assemble the unified record set.
	records, diags, err := e.assembler.Assemble(tables)
	if err != nil {
		return nil, &model.StageError{Stage: "assemble", Err: err}
	}
	e.logger.Info("assembled defect records", zap.Int("defects", len(records)))

	// 2. Fit the imputation model. Too little training data is a defined
	// fallback (use measured depths, uncertainty unavailable), not a failure.
	imputer := impute.NewModel(e.cfg.Simulation.KNeighbors, e.cfg.Simulation.MinTrainingRows, params.Seed, e.logger)
	if err := imputer.Fit(records); err != nil {
		var insufficient *model.InsufficientTrainingDataError
		if !errors.As(err, &insufficient) {
			return nil, &model.StageError{Stage: "impute", Err: err}
		}
		e.logger.Warn("imputation model unavailable, falling back to measured depths", zap.Error(err))
		diags = append(diags, model.Diagnostic{Stage: "impute", Reason: err.Error()})
	}

	// 3. Consolidate: best-available depth per defect plus model diagnostics.
	consolidated := make([]model.ConsolidatedRecord, 0, len(records))
	for _, rec := range records {
		c := model.ConsolidatedRecord{DefectRecord: rec, DepthSource: model.DepthSourceNone}

		if imputer.Fitted() {
			pred, sigma := imputer.Predict(rec)
			if rec.WallThicknessMM > 0 {
				pred = clamp(pred, 0, rec.WallThicknessMM)
			} else if pred < 0 {
				pred = 0
			}
			c.PredictedDepthMM = model.Float64Ptr(pred)
			if imputer.UncertaintyStatus() == model.UncertaintyAvailable {
				c.DepthUncertaintyMM = model.Float64Ptr(sigma)
			}
		}

		// Field verification is ground truth and is never overwritten by the
		// prediction; the prediction is kept for parity diagnostics only.
		switch {
		case rec.FieldDepthMM != nil:
			c.BestDepthMM = rec.FieldDepthMM
			c.DepthSource = model.DepthSourceField
		case c.PredictedDepthMM != nil:
			c.BestDepthMM = c.PredictedDepthMM
			c.DepthSource = model.DepthSourceModel
		case rec.ILIDepthMM != nil:
			c.BestDepthMM = rec.ILIDepthMM
			c.DepthSource = model.DepthSourceILI
		default:
			diags = append(diags, model.Diagnostic{
				JointID: rec.JointID,
				Stage:   "project",
				Reason:  "no depth measurement and no fallback; excluded from projection",
			})
		}

		if measured := rec.ILIDepthMM; measured != nil && rec.WallThicknessMM > 0 &&
			*measured/rec.WallThicknessMM < params.DetectionThreshold {
			c.LowSizingConfidence = true
		}

		consolidated = append(consolidated, c)
	}

	// 4. Monte Carlo reliability over every projection year.
	rel := reliability.NewEngine(params.Samples, params.Workers, params.Seed, e.logger)
	rel.DefaultSMYSMPa = e.cfg.Simulation.SMYSMPa

	pofRows, relDiags, err := rel.Evaluate(ctx, consolidated, params.ProjectionYears(), params.Tolerances)
	if err != nil {
		return nil, &model.StageError{Stage: "reliability", Err: err}
	}
	diags = append(diags, relDiags...)

	// 5. Package explainability artifacts and finalize the bundle.
	var importance []model.FeatureImportance
	var attributions []model.Attribution
	if imputer.Fitted() {
		importance = imputer.FeatureImportance()
		if imputer.SupportsAttribution() {
			attributions = make([]model.Attribution, 0, len(records))
			for _, rec := range records {
				attributions = append(attributions, model.Attribution{
					JointID:       rec.JointID,
					Contributions: imputer.Attribute(rec),
				})
			}
		}
	}

	sort.Slice(consolidated, func(i, j int) bool {
		return consolidated[i].JointID < consolidated[j].JointID
	})

	bundle := &model.ResultBundle{
		RunID:             uuid.New().String(),
		Consolidated:      consolidated,
		POF:               pofRows,
		FeatureImportance: importance,
		UncertaintyStatus: imputer.UncertaintyStatus(),
		Attributions:      attributions,
		Diagnostics:       diags,
		Elapsed:           time.Since(start),
	}

	e.logger.Info("simulation complete",
		zap.String("run_id", bundle.RunID),
		zap.Int("defects", len(consolidated)),
		zap.Int("pof_rows", len(pofRows)),
		zap.Duration("elapsed", bundle.Elapsed))
	return bundle, nil
}

// validateParams applies configured defaults to unset knobs and rejects
// out-of-contract values before any stage runs.
func validateParams(p *model.Params, cfg *config.Config) error {
	if p.TargetDate.Before(p.ILIDate) {
		return fmt.Errorf("target date %s precedes inspection date %s",
			p.TargetDate.Format("2006-01-02"), p.ILIDate.Format("2006-01-02"))
	}
	if p.DetectionThreshold < 0 || p.DetectionThreshold > 1 {
		return fmt.Errorf("detection threshold %.3f outside [0,1]", p.DetectionThreshold)
	}
	if p.Tolerances == nil {
		p.Tolerances = cfg.ToleranceProfile()
	}
	for t, v := range p.Tolerances {
		if v < 0 || v > 1 {
			return fmt.Errorf("tolerance %.3f for defect type %q outside [0,1]", v, t)
		}
	}
	if p.Samples == 0 {
		p.Samples = cfg.Simulation.Samples
	}
	if p.Workers == 0 {
		p.Workers = cfg.Simulation.Workers
	}
	if p.Seed == 0 {
		p.Seed = cfg.Simulation.Seed
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
